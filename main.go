package main

import (
	"github.com/JakeFAU/insider-filings-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
