package main

import (
	"os"

	"github.com/Sternrassler/results-ingest/cmd/results-ingest/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
