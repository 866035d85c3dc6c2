// Package replay re-derives a sealed Turn from the environment a
// receipt claims to describe and reports whether the recomputed proof
// matches what was recorded. It never trusts a recorded hash for an
// addressable source: every such source is re-read and re-hashed from
// the live environment (non-addressable sources keep their recorded
// hash), and the policy named in the receipt is re-loaded from
// the current policy store, not replayed from a cached copy.
package replay

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/Jeevan-04/Invariant/pkg/backend"
	"github.com/Jeevan-04/Invariant/pkg/boundary"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/receipt"
)

// Diff is one field the verifier examined and found to diverge between
// the recorded receipt and what replay recomputed.
type Diff struct {
	Field      string `json:"field"`
	Recorded   string `json:"recorded"`
	Recomputed string `json:"recomputed"`
}

// Result is the outcome of one verification attempt. Verified is true
// only when every examined field matched and the recorded signature is
// valid; otherwise Diffs lists every divergence found, in the order
// they were checked. The first entry is what a caller that only wants
// one answer should report.
type Result struct {
	Verified bool   `json:"verified"`
	Diffs    []Diff `json:"diffs,omitempty"`
}

// FirstDivergence returns the first recorded Diff, or nil if the
// receipt verified cleanly.
func (r Result) FirstDivergence() *Diff {
	if len(r.Diffs) == 0 {
		return nil
	}
	return &r.Diffs[0]
}

// Verifier re-executes the turn a receipt describes against the
// caller's current policy store, context resolver, and backend.
type Verifier struct {
	policies      boundary.PolicyLoader
	resolver      graph.FileResolver
	backend       backend.Backend
	engineVersion string
}

// NewVerifier builds a Verifier. engineVersion is the running
// program's own semver string, compared against the receipt's
// meta.engine_version.
func NewVerifier(policies boundary.PolicyLoader, resolver graph.FileResolver, be backend.Backend, engineVersion string) *Verifier {
	return &Verifier{policies: policies, resolver: resolver, backend: be, engineVersion: engineVersion}
}

// Verify replays r's turn and compares the outcome field by field.
func (v *Verifier) Verify(ctx context.Context, r receipt.Receipt) (Result, error) {
	var diffs []Diff

	identity, err := graph.NewIdentity(r.Graph.Identity.UserID, r.Graph.Identity.Role, r.Graph.Identity.Org, r.Graph.Identity.Env)
	if err != nil {
		return Result{}, fmt.Errorf("replay: recorded identity is malformed: %w", err)
	}

	extraParams, err := normalizeExtraParams(r.Graph.Model.ExtraParams)
	if err != nil {
		return Result{}, fmt.Errorf("replay: recorded model extra_params are malformed: %w", err)
	}
	model, err := graph.NewModelSpec(r.Graph.Model.Provider, r.Graph.Model.Name, r.Graph.Model.Version, r.Graph.Model.Seed, r.Graph.Model.DecodingStrategy, extraParams)
	if err != nil {
		return Result{}, fmt.Errorf("replay: recorded model spec is malformed: %w", err)
	}

	rawSources := make([]graph.RawContextSource, len(r.Graph.Context.Sources))
	for i, s := range r.Graph.Context.Sources {
		sourceType := graph.SourceType(s.Type)
		hash := s.ContentHash
		if sourceType.Addressable() {
			// The recorded hash is never trusted for an addressable
			// source: graph.New below re-resolves and re-hashes it from
			// the resolver, so leave it blank here and compare after.
			hash = ""
		}
		rawSources[i] = graph.RawContextSource{
			Type:        sourceType,
			Sensitivity: graph.Sensitivity(s.Sensitivity),
			Identifier:  s.Identifier,
			ContentHash: hash,
		}
	}
	ctxSpec, err := graph.NewContextSpec(rawSources)
	if err != nil {
		return Result{}, fmt.Errorf("replay: recorded context spec is malformed: %w", err)
	}

	b := boundary.New(v.policies, v.resolver, v.backend, nil, nil)
	turn, err := b.Run(ctx, identity, r.Graph.InputPayload, model, ctxSpec, r.Graph.PolicyName)
	if err != nil {
		return Result{}, fmt.Errorf("replay: re-execution failed: %w", err)
	}

	recomputedSources := turn.Graph.Context().Sources()
	for i, recorded := range r.Graph.Context.Sources {
		if i >= len(recomputedSources) {
			break
		}
		recomputed := recomputedSources[i]
		if recorded.ContentHash != recomputed.ContentHash() {
			diffs = append(diffs, Diff{
				Field:      fmt.Sprintf("graph.context.sources[%d].content_hash", i),
				Recorded:   recorded.ContentHash,
				Recomputed: recomputed.ContentHash(),
			})
		}
	}

	if recorded, running := r.Meta.EngineVersion, v.engineVersion; recorded != "" && running != "" {
		recordedVer, err1 := semver.NewVersion(recorded)
		runningVer, err2 := semver.NewVersion(running)
		if err1 == nil && err2 == nil && recordedVer.Major() != runningVer.Major() {
			diffs = append(diffs, Diff{
				Field:      "meta.engine_version",
				Recorded:   recorded,
				Recomputed: running,
			})
		}
	}

	if string(turn.Status) != r.Result.Status {
		diffs = append(diffs, Diff{Field: "result.status", Recorded: r.Result.Status, Recomputed: string(turn.Status)})
	}
	if turn.Output != r.Result.Output {
		diffs = append(diffs, Diff{Field: "result.output", Recorded: r.Result.Output, Recomputed: turn.Output})
	}
	recordedReason := ""
	if r.Result.AbortReason != nil {
		recordedReason = *r.Result.AbortReason
	}
	recomputedReason := ""
	if turn.AbortReason != nil {
		recomputedReason = *turn.AbortReason
	}
	if recordedReason != recomputedReason {
		diffs = append(diffs, Diff{Field: "result.abort_reason", Recorded: recordedReason, Recomputed: recomputedReason})
	}

	recomputedProof, err := receipt.ProofInput(turn.Graph.ID(), turn.Output, string(turn.Status), turn.AbortReason)
	if err != nil {
		return Result{}, fmt.Errorf("replay: recomputing proof failed: %w", err)
	}
	if recomputedProof != r.Meta.ProofID {
		diffs = append(diffs, Diff{Field: "meta.proof_id", Recorded: r.Meta.ProofID, Recomputed: recomputedProof})
	}

	for _, sig := range r.Integrity.Signatures {
		ok, verr := receipt.Verify(sig.PubKey, sig.Signature, r.Meta.ProofID)
		if verr != nil || !ok {
			diffs = append(diffs, Diff{Field: "integrity.signatures", Recorded: sig.Signature, Recomputed: "invalid"})
		}
	}

	return Result{Verified: len(diffs) == 0, Diffs: diffs}, nil
}

// normalizeExtraParams converts the float64/string/bool shapes
// encoding/json produces when decoding a receipt's extra_params back
// into the int64/string/bool set graph.NewModelSpec accepts. A whole
// float64 becomes int64; a fractional one is rejected, since it could
// never have come from a frozen ModelSpec in the first place.
func normalizeExtraParams(in map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case float64:
			if t != float64(int64(t)) {
				return nil, fmt.Errorf("extra_params[%s]: %v is not a whole number", k, t)
			}
			out[k] = int64(t)
		case string, bool:
			out[k] = t
		default:
			return nil, fmt.Errorf("extra_params[%s]: unsupported decoded type %T", k, v)
		}
	}
	return out, nil
}
