package main

import (
	"github.com/toyofumi/opendata/cmd"
)

func main() {
	cmd.Execute()
}
