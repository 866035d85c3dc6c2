// Command invariant is a thin driver over the public API: it wires an
// Engine from environment configuration, executes one turn, and
// verifies a previously-saved receipt. It is not the system under
// test; the library in pkg/ and api.go is.
package main

import (
	"io"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing: it never calls os.Exit itself so
// a test can capture stdout/stderr and the return code directly.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runExecCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = stderr.Write([]byte("unknown command: " + args[1] + "\n"))
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = w.Write([]byte(`invariant - mediated execution boundary for LLM inference

USAGE:
  invariant run --policy <name> --model <provider,name,version,seed,decoding> [--input <file>|-] [--out <path>]
  invariant verify <receipt.json>

run exit codes:  0 sealed, 2 aborted, 1 internal error
verify exit codes: 0 verified, 3 drift, 1 error
`))
}
