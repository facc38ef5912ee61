package main

import (
	"os"

	"github.com/tradekit/bandtrack/cmd/bandtrack/commands"
)

// main is the entry point for the bandtrack CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
