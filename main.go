// The main package for the product-crawler executable.
package main

import (
	"github.com/arview/product-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
