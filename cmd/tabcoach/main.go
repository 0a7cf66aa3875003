// Package main provides the entry point for the tabcoach CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tabcoach/tabcoach/cmd/tabcoach/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
