package graph

import (
	"github.com/Jeevan-04/Invariant/pkg/canon"
	"github.com/Jeevan-04/Invariant/pkg/errs"
)

// SourceType identifies the kind of context source.
type SourceType string

// The five recognised source types. file and static resolve to an
// addressable byte stream the boundary can hash itself; rag, memory,
// and tool do not — their hash must be supplied by the caller.
const (
	SourceFile   SourceType = "file"
	SourceStatic SourceType = "static"
	SourceRAG    SourceType = "rag"
	SourceMemory SourceType = "memory"
	SourceTool   SourceType = "tool"
)

// Addressable reports whether this source type names a byte stream the
// boundary itself can dereference and hash (vs. one whose hash the
// caller must already have computed).
func (t SourceType) Addressable() bool {
	return t == SourceFile || t == SourceStatic
}

func (t SourceType) valid() bool {
	switch t {
	case SourceFile, SourceStatic, SourceRAG, SourceMemory, SourceTool:
		return true
	default:
		return false
	}
}

// Sensitivity classifies how sensitive a context source's content is.
type Sensitivity string

// The three recognised sensitivity levels.
const (
	SensitivityPublic     Sensitivity = "public"
	SensitivityInternal   Sensitivity = "internal"
	SensitivityRestricted Sensitivity = "restricted"
)

func (s Sensitivity) valid() bool {
	switch s {
	case SensitivityPublic, SensitivityInternal, SensitivityRestricted:
		return true
	default:
		return false
	}
}

// RawContextSource is the caller-supplied, not-yet-frozen form of a
// context source. ContentHash may be empty for addressable types —
// the graph constructor fills it in (overwriting any supplied value)
// by hashing the bytes Identifier names. For non-addressable types the
// caller must already supply it.
type RawContextSource struct {
	Type        SourceType
	Sensitivity Sensitivity
	Identifier  string
	ContentHash string
}

// ContextSource is the frozen form: every instance that reaches a
// sealed ExecutionGraph carries a non-empty content hash.
type ContextSource struct {
	sourceType  SourceType
	sensitivity Sensitivity
	identifier  string
	contentHash string
}

func (c ContextSource) Type() SourceType        { return c.sourceType }
func (c ContextSource) SensitivityLevel() Sensitivity { return c.sensitivity }
func (c ContextSource) Identifier() string      { return c.identifier }
func (c ContextSource) ContentHash() string     { return c.contentHash }

// Canonical returns the JSON-marshalable shape consumed by the
// canonical hasher.
func (c ContextSource) Canonical() map[string]interface{} {
	return map[string]interface{}{
		"type":         string(c.sourceType),
		"sensitivity":  string(c.sensitivity),
		"identifier":   c.identifier,
		"content_hash": c.contentHash,
	}
}

// ContextSpec is an ordered sequence of context sources as declared by
// the caller. Declaration order is preserved here (it is the *input*);
// canonicalisation for hashing happens in ExecutionGraph's id
// computation, not here.
type ContextSpec struct {
	sources []RawContextSource
}

// NewContextSpec validates each source's type and sensitivity and
// freezes the declaration order. Validation of content hashes (empty
// vs. populated) happens later, at graph construction, once
// addressable sources have been resolved.
func NewContextSpec(sources []RawContextSource) (ContextSpec, error) {
	for i, s := range sources {
		if !s.Type.valid() {
			return ContextSpec{}, errs.Input("context_spec[%d]: invalid type %q", i, s.Type)
		}
		if !s.Sensitivity.valid() {
			return ContextSpec{}, errs.Input("context_spec[%d]: invalid sensitivity %q", i, s.Sensitivity)
		}
		if s.Identifier == "" {
			return ContextSpec{}, errs.Input("context_spec[%d]: identifier is required", i)
		}
	}
	cp := make([]RawContextSource, len(sources))
	copy(cp, sources)
	return ContextSpec{sources: cp}, nil
}

// Sources returns the declared sources in their original order.
func (c ContextSpec) Sources() []RawContextSource {
	out := make([]RawContextSource, len(c.sources))
	copy(out, c.sources)
	return out
}

// FrozenContextSpec is the post-hashing, immutable form embedded in an
// ExecutionGraph.
type FrozenContextSpec struct {
	sources []ContextSource
}

// Sources returns the frozen sources in their original declaration
// order (not the canonical order used for hashing).
func (f FrozenContextSpec) Sources() []ContextSource {
	out := make([]ContextSource, len(f.sources))
	copy(out, f.sources)
	return out
}

// Canonical returns the sources re-sorted into the order-insignificant
// canonical form (lexicographic on identifier, then content hash) and
// ready for the hasher. This is the rule that makes the proof
// invariant to the caller's declaration order.
func (f FrozenContextSpec) Canonical() []interface{} {
	orderable := make([]canon.OrderableSource, len(f.sources))
	for i, s := range f.sources {
		orderable[i] = contextSourceOrderable{s}
	}
	ordered := canon.OrderedByIdentityAndHash(orderable)
	out := make([]interface{}, len(ordered))
	for i, s := range ordered {
		out[i] = s.(contextSourceOrderable).src.Canonical()
	}
	return out
}

type contextSourceOrderable struct{ src ContextSource }

func (o contextSourceOrderable) Identifier() string  { return o.src.identifier }
func (o contextSourceOrderable) ContentHash() string { return o.src.contentHash }
