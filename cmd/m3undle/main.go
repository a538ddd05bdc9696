// Package main is the entry point for the m3undle application.
package main

import (
	"os"

	"github.com/m3undle/m3undle/cmd/m3undle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
