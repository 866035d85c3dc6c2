package backend

import (
	"context"

	"github.com/Jeevan-04/Invariant/pkg/graph"
)

// defaultResponseTable is the fixed table a DeterministicBackend
// indexes by seed mod len(table). It exists so tests, and the CLI when
// no INVARIANT_BACKEND_ENDPOINT is configured, can produce a
// reproducible turn without any network dependency.
var defaultResponseTable = []string{
	"This is a deterministic response A.",
	"This is a deterministic response B.",
	"This is a deterministic response C.",
	"This is a deterministic response D.",
	"This is a deterministic response E.",
}

// DeterministicBackend emits one of a fixed table of outputs selected
// by seed mod len(table), token-by-token on whitespace boundaries.
type DeterministicBackend struct {
	table []string
}

// NewDeterministicBackend returns a backend over table, or the
// built-in five-entry table if table is empty.
func NewDeterministicBackend(table []string) *DeterministicBackend {
	if len(table) == 0 {
		table = defaultResponseTable
	}
	return &DeterministicBackend{table: table}
}

func (b *DeterministicBackend) Generate(_ context.Context, _ string, model graph.ModelSpec) (TokenStream, error) {
	idx := int(model.Seed() % int64(len(b.table)))
	if idx < 0 {
		idx += len(b.table)
	}
	tokens := SplitWhitespaceBoundary(b.table[idx])
	return newSliceStream(tokens, nil), nil
}
