package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeevan-04/Invariant/pkg/backend"
	"github.com/Jeevan-04/Invariant/pkg/boundary"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/graph/contextstore"
	"github.com/Jeevan-04/Invariant/pkg/policy"
	"github.com/Jeevan-04/Invariant/pkg/receipt"
)

type fixedLoader struct {
	doc policy.Document
}

func (f fixedLoader) Load(_ context.Context, _ string) (*policy.Policy, error) {
	return policy.Compile(f.doc)
}

func mustIdentity(t *testing.T) graph.Identity {
	t.Helper()
	id, err := graph.NewIdentity("u1", "admin", "acme", "prod")
	require.NoError(t, err)
	return id
}

func mustModel(t *testing.T, seed int64) graph.ModelSpec {
	t.Helper()
	m, err := graph.NewModelSpec("mock", "m", "v1", seed, "greedy", nil)
	require.NoError(t, err)
	return m
}

func TestVerify_UnchangedEnvironmentVerifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))
	resolver := contextstore.NewLocalResolver(dir)

	loader := fixedLoader{policy.Document{Version: 1}}
	be := backend.NewDeterministicBackend(nil)
	b := boundary.New(loader, resolver, be, nil, nil)

	ctxSpec, err := graph.NewContextSpec([]graph.RawContextSource{
		{Type: graph.SourceFile, Sensitivity: graph.SensitivityInternal, Identifier: "ctx.txt"},
	})
	require.NoError(t, err)

	turn, err := b.Run(context.Background(), mustIdentity(t), "Hello", mustModel(t, 40), ctxSpec, "default")
	require.NoError(t, err)

	signer, err := receipt.NewEphemeralSigner()
	require.NoError(t, err)
	r, err := receipt.Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	v := NewVerifier(loader, resolver, be, "1.0.0")
	result, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, result.Verified, "expected verification to succeed, got diffs: %+v", result.Diffs)
}

func TestVerify_ChangedContextFileYieldsContentHashDrift(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))
	resolver := contextstore.NewLocalResolver(dir)

	loader := fixedLoader{policy.Document{Version: 1}}
	be := backend.NewDeterministicBackend(nil)
	b := boundary.New(loader, resolver, be, nil, nil)

	ctxSpec, err := graph.NewContextSpec([]graph.RawContextSource{
		{Type: graph.SourceFile, Sensitivity: graph.SensitivityInternal, Identifier: "ctx.txt"},
	})
	require.NoError(t, err)

	turn, err := b.Run(context.Background(), mustIdentity(t), "Hello", mustModel(t, 40), ctxSpec, "default")
	require.NoError(t, err)

	signer, err := receipt.NewEphemeralSigner()
	require.NoError(t, err)
	r, err := receipt.Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	v := NewVerifier(loader, resolver, be, "1.0.0")
	result, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, result.Verified, "expected verification to fail after the context file changed")

	first := result.FirstDivergence()
	require.NotNil(t, first, "expected a first divergence")
	assert.Equal(t, "graph.context.sources[0].content_hash", first.Field)
}

func TestVerify_ChangedPolicyYieldsOutputDrift(t *testing.T) {
	resolver := emptyResolver{}
	be := backend.NewDeterministicBackend(nil)

	loaderAtRecordTime := fixedLoader{policy.Document{Version: 1}}
	b := boundary.New(loaderAtRecordTime, resolver, be, nil, nil)

	ctxSpec, err := graph.NewContextSpec(nil)
	require.NoError(t, err)
	turn, err := b.Run(context.Background(), mustIdentity(t), "Hello", mustModel(t, 40), ctxSpec, "default")
	require.NoError(t, err)

	signer, err := receipt.NewEphemeralSigner()
	require.NoError(t, err)
	r, err := receipt.Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	loaderAtVerifyTime := fixedLoader{policy.Document{Version: 1, Rules: []policy.Rule{
		{Kind: policy.KindSubstring, Value: "response", Scope: policy.ScopeToken, Action: policy.ActionDeny},
	}}}
	v := NewVerifier(loaderAtVerifyTime, resolver, be, "1.0.0")
	result, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, result.Verified, "expected verification to fail once the policy tightened")
}

func TestVerify_EngineVersionMinorBumpStillVerifies(t *testing.T) {
	resolver := emptyResolver{}
	be := backend.NewDeterministicBackend(nil)
	loader := fixedLoader{policy.Document{Version: 1}}
	b := boundary.New(loader, resolver, be, nil, nil)

	ctxSpec, err := graph.NewContextSpec(nil)
	require.NoError(t, err)
	turn, err := b.Run(context.Background(), mustIdentity(t), "Hello", mustModel(t, 40), ctxSpec, "default")
	require.NoError(t, err)

	signer, err := receipt.NewEphemeralSigner()
	require.NoError(t, err)
	r, err := receipt.Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	v := NewVerifier(loader, resolver, be, "1.3.0")
	result, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, result.Verified, "a minor engine version bump must not count as drift")
}

func TestVerify_EngineVersionMajorBumpYieldsDrift(t *testing.T) {
	resolver := emptyResolver{}
	be := backend.NewDeterministicBackend(nil)
	loader := fixedLoader{policy.Document{Version: 1}}
	b := boundary.New(loader, resolver, be, nil, nil)

	ctxSpec, err := graph.NewContextSpec(nil)
	require.NoError(t, err)
	turn, err := b.Run(context.Background(), mustIdentity(t), "Hello", mustModel(t, 40), ctxSpec, "default")
	require.NoError(t, err)

	signer, err := receipt.NewEphemeralSigner()
	require.NoError(t, err)
	r, err := receipt.Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	v := NewVerifier(loader, resolver, be, "2.0.0")
	result, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, result.Verified, "a major engine version bump must count as drift")
}

type emptyResolver struct{}

func (emptyResolver) Digest(identifier string) (string, error) {
	return "", nil //nolint:nilerr // no addressable sources used in this test
}
