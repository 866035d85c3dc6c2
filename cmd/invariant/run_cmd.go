package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	invariant "github.com/Jeevan-04/Invariant"
	"github.com/Jeevan-04/Invariant/pkg/config"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/receipt"
)

// runExecCmd implements `invariant run`.
//
// --model takes the compact form "provider,name,version,seed,decoding",
// e.g. "mock,m,v1,40,greedy".
//
// Exit codes:
//
//	0 = result.status SEALED
//	2 = result.status ABORTED
//	1 = internal error (no receipt produced)
func runExecCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		policyName string
		modelSpec  string
		userID     string
		role       string
		org        string
		env        string
		inputPath  string
		outPath    string
		contextArg string
	)

	cmd.StringVar(&policyName, "policy", "", "Policy name to load (REQUIRED)")
	cmd.StringVar(&modelSpec, "model", "", "provider,name,version,seed,decoding_strategy (REQUIRED)")
	cmd.StringVar(&userID, "user", "anonymous", "Identity user_id")
	cmd.StringVar(&role, "role", "caller", "Identity role")
	cmd.StringVar(&org, "org", "default", "Identity org")
	cmd.StringVar(&env, "env", "prod", "Identity env")
	cmd.StringVar(&inputPath, "input", "-", "Input payload file, or - for stdin")
	cmd.StringVar(&outPath, "out", "", "Write the receipt here in addition to stdout")
	cmd.StringVar(&contextArg, "context", "", "Comma-separated type:sensitivity:identifier:content_hash entries")

	if err := cmd.Parse(args); err != nil {
		return 1
	}

	if policyName == "" || modelSpec == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --policy and --model are required")
		return 1
	}

	model, err := parseModelSpec(modelSpec)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --model: %v\n", err)
		return 1
	}

	sources, err := parseContextArg(contextArg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --context: %v\n", err)
		return 1
	}

	input, err := readInput(inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: reading input: %v\n", err)
		return 1
	}

	cfg := config.Load()
	engine, err := invariant.New(cfg, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: initializing engine: %v\n", err)
		return 1
	}

	req := invariant.ExecuteRequest{
		UserID:           userID,
		Role:             role,
		Org:              org,
		Env:              env,
		InputPayload:     input,
		PolicyName:       policyName,
		ModelProvider:    model.provider,
		ModelName:        model.name,
		ModelVersion:     model.version,
		ModelSeed:        model.seed,
		DecodingStrategy: model.decoding,
		Context:          sources,
	}

	r, err := engine.Execute(context.Background(), req, receipt.Now())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	raw, err := r.Marshal()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshaling receipt: %v\n", err)
		return 1
	}
	if _, err := stdout.Write(raw); err != nil {
		return 1
	}

	if outPath != "" {
		if err := invariant.Save(r, outPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: writing %s: %v\n", outPath, err)
			return 1
		}
	}

	if r.Result.Status == "ABORTED" {
		return 2
	}
	return 0
}

type modelArgs struct {
	provider string
	name     string
	version  string
	seed     int64
	decoding string
}

func parseModelSpec(s string) (modelArgs, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return modelArgs{}, fmt.Errorf("expected 5 comma-separated fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	seed, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return modelArgs{}, fmt.Errorf("seed %q: %w", parts[3], err)
	}
	return modelArgs{
		provider: parts[0],
		name:     parts[1],
		version:  parts[2],
		seed:     seed,
		decoding: parts[4],
	}, nil
}

func parseContextArg(s string) ([]graph.RawContextSource, error) {
	if s == "" {
		return nil, nil
	}
	entries := strings.Split(s, ",")
	sources := make([]graph.RawContextSource, 0, len(entries))
	for _, e := range entries {
		fields := strings.SplitN(e, ":", 4)
		if len(fields) < 3 {
			return nil, fmt.Errorf("entry %q: need at least type:sensitivity:identifier", e)
		}
		src := graph.RawContextSource{
			Type:        graph.SourceType(fields[0]),
			Sensitivity: graph.Sensitivity(fields[1]),
			Identifier:  fields[2],
		}
		if len(fields) == 4 {
			src.ContentHash = fields[3]
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return "", err
	}
	return string(data), nil
}
