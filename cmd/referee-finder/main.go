// Package main is the entry point for the referee-finder CLI.
//
// The CLI reads eligible preprints from the record store, walks the
// PubMed, OpenAlex and Semantic Scholar fallback sequence for each one,
// and prints the resulting referee map as JSON. Runs can optionally be
// stored in PostgreSQL, published to Kafka and inspected later through
// the show and serve subcommands.
package main

import (
	"errors"
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
