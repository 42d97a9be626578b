// Package main provides the entry point for the groundctx CLI.
package main

import (
	"os"

	"github.com/groundctx/groundctx/cmd/groundctx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
