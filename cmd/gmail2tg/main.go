package main

import (
	"os"

	"github.com/beam-cloud/gmail2tg/pkg/cli"
)

func main() {
	// Execute prints its own errors
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
