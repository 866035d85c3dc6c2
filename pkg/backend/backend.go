// Package backend defines the model backend port: a pull-based token
// stream the boundary drives one token at a time, plus two conformant
// implementations.
package backend

import (
	"context"

	"github.com/Jeevan-04/Invariant/pkg/graph"
)

// TokenStream is a lazy, finite sequence of token strings. The
// boundary calls Next until it returns ok=false or an error; it calls
// Close exactly once, whether or not it consumed the whole stream —
// on a mid-stream veto Close must happen promptly so any underlying
// connection or child process is released without waiting for EOF.
type TokenStream interface {
	Next() (token string, ok bool, err error)
	Close() error
}

// Backend generates a token stream for a prompt under a declared
// model configuration. Implementations must honour model.Seed() and
// model.DecodingStrategy() — the proof is only meaningful if the
// backend actually behaves as declared.
type Backend interface {
	Generate(ctx context.Context, prompt string, model graph.ModelSpec) (TokenStream, error)
}

// sliceStream adapts a pre-split []string into a TokenStream. The
// DeterministicBackend uses it once it has produced its full token
// list — "lazy" here means the boundary still pulls one at a time and
// can stop early, not that tokens are generated on demand. The remote
// backend does not use it; it streams through sseTokenStream.
type sliceStream struct {
	tokens  []string
	pos     int
	closed  bool
	onClose func() error
}

func newSliceStream(tokens []string, onClose func() error) *sliceStream {
	return &sliceStream{tokens: tokens, onClose: onClose}
}

func (s *sliceStream) Next() (string, bool, error) {
	if s.pos >= len(s.tokens) {
		return "", false, nil
	}
	tok := s.tokens[s.pos]
	s.pos++
	return tok, true, nil
}

func (s *sliceStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}

// SplitWhitespaceBoundary splits s into tokens on whitespace
// boundaries, each token carrying the run of whitespace that follows
// it (if any), so concatenating the tokens reconstructs s exactly.
func SplitWhitespaceBoundary(s string) []string {
	var tokens []string
	n := len(s)
	i := 0
	for i < n {
		j := i
		for j < n && !isSpaceByte(s[j]) {
			j++
		}
		k := j
		for k < n && isSpaceByte(s[k]) {
			k++
		}
		tokens = append(tokens, s[i:k])
		i = k
	}
	return tokens
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
