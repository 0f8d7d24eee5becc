// Package main is the entry point for the slackmirror CLI.
package main

import (
	"os"

	"github.com/slackmirror/slackmirror/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
