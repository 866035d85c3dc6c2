package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	invariant "github.com/Jeevan-04/Invariant"
	"github.com/Jeevan-04/Invariant/pkg/config"
)

// runVerifyCmd implements `invariant verify <receipt.json>`.
//
// Exit codes:
//
//	0 = verified cleanly
//	3 = drift detected (first divergent field printed to stdout)
//	1 = runtime error (unreadable file, malformed schema, engine init failure)
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	if err := cmd.Parse(args); err != nil {
		return 1
	}

	rest := cmd.Args()
	if len(rest) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: invariant verify <receipt.json>")
		return 1
	}

	r, err := invariant.Load(rest[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg := config.Load()
	engine, err := invariant.New(cfg, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: initializing engine: %v\n", err)
		return 1
	}

	result, err := engine.Verify(context.Background(), r)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if result.Verified {
		_, _ = fmt.Fprintln(stdout, "verified")
		return 0
	}

	first := result.FirstDivergence()
	_, _ = fmt.Fprintln(stdout, "drift")
	if first != nil {
		_, _ = fmt.Fprintf(stdout, "field: %s\nrecorded: %s\nrecomputed: %s\n", first.Field, first.Recorded, first.Recomputed)
	}
	return 3
}
