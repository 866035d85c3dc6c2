// Package invariant is the public entry point: wire an Engine from
// configuration, execute turns, verify receipts, and save them to
// disk. Everything else under pkg/ is an implementation detail a
// caller that only needs these three operations never has to import
// directly.
package invariant

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/Jeevan-04/Invariant/pkg/backend"
	"github.com/Jeevan-04/Invariant/pkg/boundary"
	"github.com/Jeevan-04/Invariant/pkg/config"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/graph/contextstore"
	"github.com/Jeevan-04/Invariant/pkg/policy"
	"github.com/Jeevan-04/Invariant/pkg/receipt"
	"github.com/Jeevan-04/Invariant/pkg/replay"
)

// EngineVersion is this build's own semver string. The Replay Verifier
// compares it against a receipt's recorded meta.engine_version.
const EngineVersion = "1.0.0"

// Engine is a ready-to-use execution boundary plus its replay
// verifier, both wired from one Config. It is safe for concurrent use.
type Engine struct {
	boundary *boundary.Boundary
	verifier *replay.Verifier
	signer   *receipt.Signer
}

// ExecuteRequest is everything Execute needs to run one turn.
type ExecuteRequest struct {
	UserID           string
	Role             string
	Org              string
	Env              string
	InputPayload     string
	PolicyName       string
	ModelProvider    string
	ModelName        string
	ModelVersion     string
	ModelSeed        int64
	DecodingStrategy string
	ExtraParams      map[string]interface{}
	Context          []graph.RawContextSource
}

// New wires an Engine from cfg: a policy loader (backed by SQLite or
// Redis if configured, else an in-process cache), a context resolver
// dispatching on identifier scheme, a deterministic or remote backend
// depending on whether a backend endpoint is configured, and a node
// signer loaded or created at cfg.NodeKeyPath. limiter may be nil to
// disable the turn admission limit.
func New(cfg *config.Config, limiter *rate.Limiter) (*Engine, error) {
	cache, err := newPolicyCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("invariant: building policy cache: %w", err)
	}
	loader := policy.NewLoader(cfg.PolicyDir, cache)

	resolver := contextstore.NewResolverFromEnv(context.Background())
	if cfg.ContextLocalDir != "" {
		resolver.Local = contextstore.NewLocalResolver(cfg.ContextLocalDir)
	}

	be := newBackend(cfg)

	signer, err := receipt.LoadOrCreateSigner(cfg.NodeKeyPath, cfg.NodeKeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("invariant: loading node key: %w", err)
	}

	b := boundary.New(loader, resolver, be, limiter, nil)
	v := replay.NewVerifier(loader, resolver, be, EngineVersion)

	return &Engine{boundary: b, verifier: v, signer: signer}, nil
}

func newPolicyCache(cfg *config.Config) (policy.Cache, error) {
	switch {
	case cfg.PolicyCacheDSN != "":
		return policy.NewSQLiteCache(cfg.PolicyCacheDSN)
	case cfg.RedisURL != "":
		return policy.NewRedisCacheFromURL(cfg.RedisURL, "")
	default:
		return policy.NewMemoryCache(), nil
	}
}

func newBackend(cfg *config.Config) backend.Backend {
	if cfg.BackendEndpoint != "" {
		return backend.NewRemoteChatBackend(http.DefaultClient, cfg.BackendEndpoint, cfg.BackendAPIKey)
	}
	return backend.NewDeterministicBackend(nil)
}

// Execute runs one turn end to end and returns a signed, ready-to-save
// Receipt. now is the RFC 3339 timestamp to stamp on the receipt's
// meta.timestamp (pass receipt.Now() in production code; tests pass a
// fixed value to stay reproducible).
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest, now string) (receipt.Receipt, error) {
	identity, err := graph.NewIdentity(req.UserID, req.Role, req.Org, req.Env)
	if err != nil {
		return receipt.Receipt{}, err
	}
	model, err := graph.NewModelSpec(req.ModelProvider, req.ModelName, req.ModelVersion, req.ModelSeed, req.DecodingStrategy, req.ExtraParams)
	if err != nil {
		return receipt.Receipt{}, err
	}
	ctxSpec, err := graph.NewContextSpec(req.Context)
	if err != nil {
		return receipt.Receipt{}, err
	}

	turn, err := e.boundary.Run(ctx, identity, req.InputPayload, model, ctxSpec, req.PolicyName)
	if err != nil {
		return receipt.Receipt{}, err
	}

	return receipt.Build(turn, e.signer, EngineVersion, now)
}

// Verify re-derives r's turn from the current environment and reports
// whether the recomputed proof matches what was recorded.
func (e *Engine) Verify(ctx context.Context, r receipt.Receipt) (replay.Result, error) {
	return e.verifier.Verify(ctx, r)
}

// Save canonicalises r and writes it to path.
func Save(r receipt.Receipt, path string) error {
	raw, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil { //nolint:gosec // receipt is not secret material
		return fmt.Errorf("invariant: writing receipt %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a receipt previously written by Save.
func Load(path string) (receipt.Receipt, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("invariant: reading receipt %s: %w", path, err)
	}
	return receipt.Parse(raw)
}
