// Package graph holds the frozen, content-addressed description of one
// execution turn: who asked, what they asked, which model and policy
// govern it, and which context sources back it. An ExecutionGraph is
// immutable once built — nothing downstream can observe it mutate,
// which is what lets its id double as a commitment to everything it
// contains.
package graph

import (
	"github.com/Jeevan-04/Invariant/pkg/canon"
	"github.com/Jeevan-04/Invariant/pkg/errs"
)

// FileResolver reads the bytes an addressable context source (file,
// static) names, so the graph constructor can hash them itself rather
// than trust a caller-supplied hash. Implementations live in
// pkg/graph/contextstore.
type FileResolver interface {
	Digest(identifier string) (string, error)
}

// ExecutionGraph is the frozen input side of a turn: everything the
// boundary needs to admit, run, and seal it, and everything the
// receipt's proof binds to.
type ExecutionGraph struct {
	id           string
	identity     Identity
	inputPayload string
	policyName   string
	model        ModelSpec
	context      FrozenContextSpec
}

// New builds an ExecutionGraph from its declared parts, resolving and
// hashing any addressable context sources with resolver, and computing
// the graph's content-addressed id.
//
// Construction proceeds in four steps:
//  1. validate identity, model spec, and context spec shapes (done by
//     their own constructors before New is called);
//  2. resolve every addressable (file, static) source's content hash
//     via resolver, overwriting any hash the caller supplied — the
//     proof must bind to what is actually on disk, not to a claim;
//  3. refuse an empty content hash on any non-addressable (rag,
//     memory, tool) source — those have nothing New can resolve, so an
//     absent hash is a caller error, not something to default;
//  4. compute id as the digest of the canonical, order-invariant
//     encoding of {identity, input_payload, policy_name, model,
//     context}.
func New(identity Identity, inputPayload, policyName string, model ModelSpec, spec ContextSpec, resolver FileResolver) (ExecutionGraph, error) {
	if policyName == "" {
		return ExecutionGraph{}, errs.Input("execution_graph: policy_name is required")
	}

	raw := spec.Sources()
	frozen := make([]ContextSource, len(raw))
	for i, s := range raw {
		hash := s.ContentHash
		if s.Type.Addressable() {
			resolved, err := resolver.Digest(s.Identifier)
			if err != nil {
				return ExecutionGraph{}, errs.ContextResolution("context_spec[%d] (%s): %v", i, s.Identifier, err)
			}
			hash = resolved
		} else if hash == "" {
			return ExecutionGraph{}, errs.Input("context_spec[%d]: %s source %q has no content_hash and cannot be resolved", i, s.Type, s.Identifier)
		}
		frozen[i] = ContextSource{
			sourceType:  s.Type,
			sensitivity: s.Sensitivity,
			identifier:  s.Identifier,
			contentHash: hash,
		}
	}
	frozenSpec := FrozenContextSpec{sources: frozen}

	g := ExecutionGraph{
		identity:     identity,
		inputPayload: inputPayload,
		policyName:   policyName,
		model:        model,
		context:      frozenSpec,
	}

	id, err := canon.DigestValueHex(g.canonicalForID())
	if err != nil {
		return ExecutionGraph{}, errs.Integrity("execution_graph: id computation failed: %v", err)
	}
	g.id = id
	return g, nil
}

func (g ExecutionGraph) canonicalForID() map[string]interface{} {
	return map[string]interface{}{
		"identity":      g.identity.Canonical(),
		"input_payload": g.inputPayload,
		"policy_name":   g.policyName,
		"model_spec":    g.model.Canonical(),
		"context_spec":  g.context.Canonical(),
	}
}

func (g ExecutionGraph) ID() string                  { return g.id }
func (g ExecutionGraph) Identity() Identity          { return g.identity }
func (g ExecutionGraph) InputPayload() string        { return g.inputPayload }
func (g ExecutionGraph) PolicyName() string          { return g.policyName }
func (g ExecutionGraph) Model() ModelSpec            { return g.model }
func (g ExecutionGraph) Context() FrozenContextSpec  { return g.context }
