package spider

import (
	"fmt"

	"github.com/robertkrimen/otto"
)

// ApplyTransform evaluates a selector's transform expression against one
// captured value. The raw value is bound as "value" inside the script; the
// expression result becomes the stored value.
func ApplyTransform(script, value string) (string, error) {
	vm := otto.New()
	if err := vm.Set("value", value); err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}
	v, err := vm.Run(script)
	if err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}
	out, err := v.ToString()
	if err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}
	return out, nil
}
