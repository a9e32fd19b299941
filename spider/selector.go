package spider

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RootID is the synthetic parent id a selector declares to be evaluated
// against the start page itself.
const RootID = "_root"

// FieldURL is the reserved record field carrying the page URL.
const FieldURL = "url"

// SelectorKind says what a selector does with its matches: follow them as
// links, or capture a text / image value.
type SelectorKind int

const (
	KindNavigate SelectorKind = iota
	KindCaptureText
	KindCaptureImage
)

// External type names used in scrape configuration files.
const (
	typeLink  = "SelectorLink"
	typeText  = "SelectorText"
	typeImage = "SelectorImage"
)

func (k SelectorKind) String() string {
	switch k {
	case KindNavigate:
		return typeLink
	case KindCaptureText:
		return typeText
	case KindCaptureImage:
		return typeImage
	}
	return fmt.Sprintf("SelectorKind(%d)", int(k))
}

func ParseSelectorKind(s string) (SelectorKind, error) {
	switch s {
	case typeLink:
		return KindNavigate, nil
	case typeText:
		return KindCaptureText, nil
	case typeImage:
		return KindCaptureImage, nil
	}
	return 0, fmt.Errorf("unknown selector type %q", s)
}

// SelectorNode is one named rule of a scrape configuration: a CSS locator,
// what to do with the matches and which contexts it is evaluated under.
type SelectorNode struct {
	ID        string
	Kind      SelectorKind
	Locator   string
	Multiple  bool // evaluate all matches instead of only the first
	ParentIDs []string
	Transform string // optional JavaScript expression applied to each captured value
}

func (n *SelectorNode) HasParent(id string) bool {
	for _, p := range n.ParentIDs {
		if p == id {
			return true
		}
	}
	return false
}

// selectorWire is the on-disk shape of a selector.
type selectorWire struct {
	ID              string   `json:"id" yaml:"id"`
	Type            string   `json:"type" yaml:"type"`
	Selector        string   `json:"selector" yaml:"selector"`
	Multiple        bool     `json:"multiple" yaml:"multiple"`
	ParentSelectors []string `json:"parentSelectors" yaml:"parentSelectors"`
	Transform       string   `json:"transform" yaml:"transform"`
}

func (n *SelectorNode) fromWire(w selectorWire) error {
	kind, err := ParseSelectorKind(w.Type)
	if err != nil {
		return err
	}
	n.ID = w.ID
	n.Kind = kind
	n.Locator = w.Selector
	n.Multiple = w.Multiple
	n.ParentIDs = w.ParentSelectors
	n.Transform = w.Transform
	return nil
}

func (n *SelectorNode) UnmarshalJSON(data []byte) error {
	var w selectorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return n.fromWire(w)
}

func (n *SelectorNode) UnmarshalYAML(value *yaml.Node) error {
	var w selectorWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	return n.fromWire(w)
}

// startURLs accepts either a single string or an array of strings under the
// startUrl key.
type startURLs []string

func (s *startURLs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s *startURLs) UnmarshalYAML(value *yaml.Node) error {
	var single string
	if err := value.Decode(&single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ScrapeConfig is the immutable description of one crawl: the start URL
// templates and the selector tree.
type ScrapeConfig struct {
	StartURLs []string
	Selectors []*SelectorNode
}

type scrapeConfigWire struct {
	StartURL  startURLs       `json:"startUrl" yaml:"startUrl"`
	Selectors []*SelectorNode `json:"selectors" yaml:"selectors"`
}

func (c *ScrapeConfig) UnmarshalJSON(data []byte) error {
	var w scrapeConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.StartURLs = w.StartURL
	c.Selectors = w.Selectors
	return nil
}

func (c *ScrapeConfig) UnmarshalYAML(value *yaml.Node) error {
	var w scrapeConfigWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	c.StartURLs = w.StartURL
	c.Selectors = w.Selectors
	return nil
}

// Validation failures that abort a crawl before any network activity.
var (
	ErrMissingStartURL = errors.New("config: missing startUrl")
	ErrNoSelectors     = errors.New("config: missing selectors")
	ErrNoRootSelector  = errors.New(`config: no selector declares "_root" as parent`)
)

func (c *ScrapeConfig) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrMissingStartURL
	}
	if len(c.Selectors) == 0 {
		return ErrNoSelectors
	}
	seen := make(map[string]struct{}, len(c.Selectors))
	rooted := false
	for _, n := range c.Selectors {
		if n.ID == "" {
			return errors.New("config: selector with empty id")
		}
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("config: duplicate selector id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
		if n.HasParent(RootID) {
			rooted = true
		}
	}
	if !rooted {
		return ErrNoRootSelector
	}
	return nil
}

// Children returns, in configuration order, the selectors evaluated under the
// given parent id.
func (c *ScrapeConfig) Children(parentID string) []*SelectorNode {
	var out []*SelectorNode
	for _, n := range c.Selectors {
		if n.HasParent(parentID) {
			out = append(out, n)
		}
	}
	return out
}

// HasChildren reports whether any selector is evaluated under the given id;
// a Navigate selector without children is a dead end.
func (c *ScrapeConfig) HasChildren(id string) bool {
	for _, n := range c.Selectors {
		if n.HasParent(id) {
			return true
		}
	}
	return false
}

// IsLeaf reports whether the given selector's children contain no further
// Navigate selectors, i.e. whether pages it navigates to are true leaves of
// the link tree.
func (c *ScrapeConfig) IsLeaf(id string) bool {
	for _, n := range c.Selectors {
		if n.HasParent(id) && n.Kind == KindNavigate {
			return false
		}
	}
	return true
}

// ParseScrapeConfig decodes and validates a JSON scrape configuration.
func ParseScrapeConfig(data []byte) (*ScrapeConfig, error) {
	var cfg ScrapeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadScrapeConfig(path string) (*ScrapeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScrapeConfig(data)
}
