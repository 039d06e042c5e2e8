// Package main is the entry point for the renditiond application.
package main

import (
	"os"

	"github.com/vidplat/renditiond/cmd/renditiond/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
