// The main package for the archive-crawler executable.
package main

import (
	"github.com/JakeFAU/archive-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
