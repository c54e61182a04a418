// The main package for the jobscout executable.
package main

import (
	"github.com/JakeFAU/ats-job-scout/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
