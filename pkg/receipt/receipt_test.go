package receipt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeevan-04/Invariant/pkg/backend"
	"github.com/Jeevan-04/Invariant/pkg/boundary"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/policy"
)

type fixedLoader struct {
	doc policy.Document
}

func (f fixedLoader) Load(_ context.Context, _ string) (*policy.Policy, error) {
	return policy.Compile(f.doc)
}

type emptyResolver struct{}

func (emptyResolver) Digest(identifier string) (string, error) {
	return "", nil //nolint:nilerr // no addressable sources used in these tests
}

func mustTurn(t *testing.T) boundary.Turn {
	t.Helper()
	b := boundary.New(fixedLoader{policy.Document{Version: 1}}, emptyResolver{}, backend.NewDeterministicBackend(nil), nil, nil)

	identity, err := graph.NewIdentity("u1", "admin", "acme", "prod")
	require.NoError(t, err)
	model, err := graph.NewModelSpec("mock", "m", "v1", 40, "greedy", nil)
	require.NoError(t, err)
	ctxSpec, err := graph.NewContextSpec(nil)
	require.NoError(t, err)

	turn, err := b.Run(context.Background(), identity, "Hello", model, ctxSpec, "default")
	require.NoError(t, err)
	return turn
}

func TestBuild_SignatureSelfConsistency(t *testing.T) {
	signer, err := NewEphemeralSigner()
	require.NoError(t, err)
	turn := mustTurn(t)

	r, err := Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, r.Integrity.Signatures, 1)

	sig := r.Integrity.Signatures[0]
	ok, err := Verify(sig.PubKey, sig.Signature, r.Meta.ProofID)
	require.NoError(t, err)
	assert.True(t, ok, "expected signature to verify against its own proof id")
}

func TestBuild_SchemaAndFieldLayout(t *testing.T) {
	signer, err := NewEphemeralSigner()
	require.NoError(t, err)
	turn := mustTurn(t)

	r, err := Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, SchemaV1, r.Schema)
	assert.Equal(t, "SEALED", r.Result.Status)
	assert.Equal(t, "This is a deterministic response A.", r.Result.Output)
	assert.Nil(t, r.Result.AbortReason)
	assert.Equal(t, "u1", r.Graph.Identity.UserID)
}

func TestMarshal_SortedKeysIndentedTrailingNewline(t *testing.T) {
	signer, err := NewEphemeralSigner()
	require.NoError(t, err)
	turn := mustTurn(t)
	r, err := Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	raw, err := r.Marshal()
	require.NoError(t, err)

	assert.True(t, len(raw) > 0 && raw[len(raw)-1] == '\n', "expected trailing newline")
	assert.Contains(t, string(raw), "  \"schema\"", "expected two-space indentation")

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "schema")
}

func TestParse_RejectsUnknownSchema(t *testing.T) {
	_, err := Parse([]byte(`{"schema":"invariant.receipt.v2"}`))
	assert.Error(t, err)
}

func TestParse_RoundTrip(t *testing.T) {
	signer, err := NewEphemeralSigner()
	require.NoError(t, err)
	turn := mustTurn(t)
	r, err := Build(turn, signer, "1.0.0", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	raw, err := r.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, r.Meta.ProofID, parsed.Meta.ProofID)
}

func TestProofInput_MatchesSealedTurnProof(t *testing.T) {
	turn := mustTurn(t)
	recomputed, err := ProofInput(turn.Graph.ID(), turn.Output, string(turn.Status), turn.AbortReason)
	require.NoError(t, err)
	assert.Equal(t, turn.Proof, recomputed)
}
