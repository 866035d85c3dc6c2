package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Jeevan-04/Invariant/pkg/boundary"
	"github.com/Jeevan-04/Invariant/pkg/canon"
)

// SchemaV1 is the only receipt schema this package emits or accepts.
const SchemaV1 = "invariant.receipt.v1"

// Identity mirrors graph.Identity's JSON shape.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Org    string `json:"org"`
	Env    string `json:"env"`
}

// ModelSpec mirrors graph.ModelSpec's JSON shape.
type ModelSpec struct {
	Provider         string                 `json:"provider"`
	Name             string                 `json:"name"`
	Version          string                 `json:"version"`
	Seed             int64                  `json:"seed"`
	DecodingStrategy string                 `json:"decoding_strategy"`
	ExtraParams      map[string]interface{} `json:"extra_params"`
}

// ContextSource mirrors graph.ContextSource's JSON shape.
type ContextSource struct {
	Type        string `json:"type"`
	Sensitivity string `json:"sensitivity"`
	Identifier  string `json:"identifier"`
	ContentHash string `json:"content_hash"`
}

// Meta carries the receipt's schema-adjacent bookkeeping fields.
type Meta struct {
	EngineVersion string `json:"engine_version"`
	Timestamp     string `json:"timestamp"`
	ProofID       string `json:"proof_id"`
}

// Graph is the frozen input side of the turn, reproduced verbatim from
// the ExecutionGraph so a verifier can re-derive everything without
// re-contacting the caller.
type Graph struct {
	Identity     Identity        `json:"identity"`
	InputPayload string          `json:"input_payload"`
	PolicyName   string          `json:"policy_name"`
	Model        ModelSpec       `json:"model"`
	Context      ContextSourceList `json:"context"`
}

// ContextSourceList wraps the sources slice so it serialises under the
// "sources" key, matching graph.context.sources in the on-disk schema.
type ContextSourceList struct {
	Sources []ContextSource `json:"sources"`
}

// Result is the turn's outcome.
type Result struct {
	Status      string  `json:"status"`
	Output      string  `json:"output"`
	AbortReason *string `json:"abort_reason"`
}

// Signature is one entry in integrity.signatures.
type Signature struct {
	Algo        string `json:"algo"`
	PubKey      string `json:"pub_key"`
	Signature   string `json:"signature"`
	SignedField string `json:"signed_field"`
}

// Integrity carries every signature attesting to the receipt.
type Integrity struct {
	Signatures []Signature `json:"signatures"`
}

// Receipt is the full on-disk envelope.
type Receipt struct {
	Schema    string    `json:"schema"`
	Meta      Meta      `json:"meta"`
	Graph     Graph     `json:"graph"`
	Result    Result    `json:"result"`
	Integrity Integrity `json:"integrity"`
}

// Build assembles a Receipt from a sealed or aborted Turn, computing
// meta.proof_id from the turn's proof and signing it with signer.
// timestamp is passed in rather than read from the clock: canon-free
// code paths (like this one) must stay reproducible for tests, and the
// caller (the public API) is the one place that may legitimately read
// wall-clock time.
func Build(turn boundary.Turn, signer *Signer, engineVersion, timestamp string) (Receipt, error) {
	sources := turn.Graph.Context().Sources()
	ctxSources := make([]ContextSource, len(sources))
	for i, s := range sources {
		ctxSources[i] = ContextSource{
			Type:        string(s.Type()),
			Sensitivity: string(s.SensitivityLevel()),
			Identifier:  s.Identifier(),
			ContentHash: s.ContentHash(),
		}
	}

	model := turn.Graph.Model()
	extra := make(map[string]interface{}, len(model.ExtraParamKeys()))
	for _, k := range model.ExtraParamKeys() {
		v, _ := model.ExtraParam(k)
		extra[k] = v
	}

	identity := turn.Graph.Identity()

	proofID := turn.Proof
	r := Receipt{
		Schema: SchemaV1,
		Meta: Meta{
			EngineVersion: engineVersion,
			Timestamp:     timestamp,
			ProofID:       proofID,
		},
		Graph: Graph{
			Identity: Identity{
				UserID: identity.UserID(),
				Role:   identity.Role(),
				Org:    identity.Org(),
				Env:    identity.Env(),
			},
			InputPayload: turn.Graph.InputPayload(),
			PolicyName:   turn.Graph.PolicyName(),
			Model: ModelSpec{
				Provider:         model.Provider(),
				Name:             model.Name(),
				Version:          model.Version(),
				Seed:             model.Seed(),
				DecodingStrategy: model.DecodingStrategy(),
				ExtraParams:      extra,
			},
			Context: ContextSourceList{Sources: ctxSources},
		},
		Result: Result{
			Status:      string(turn.Status),
			Output:      turn.Output,
			AbortReason: turn.AbortReason,
		},
	}

	if signer != nil {
		sig := signer.Sign(proofID)
		r.Integrity.Signatures = []Signature{{
			Algo:        "ed25519",
			PubKey:      signer.PublicKeyHex(),
			Signature:   sig,
			SignedField: "meta.proof_id",
		}}
	}

	return r, nil
}

// Now returns an RFC 3339 UTC timestamp with a trailing 'Z', the form
// meta.timestamp requires. It is the one place in this package allowed
// to touch the wall clock; Build itself takes timestamp as a parameter
// so every other path stays reproducible.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// Marshal renders r as the canonicalised on-disk form: keys sorted,
// two-space indentation, trailing newline.
func (r Receipt) Marshal() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("receipt: marshal failed: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("receipt: re-decode failed: %w", err)
	}
	sorted := sortKeys(generic)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sorted); err != nil {
		return nil, fmt.Errorf("receipt: encode failed: %w", err)
	}
	// json.Encoder already appends a trailing newline.
	return buf.Bytes(), nil
}

// Parse reads a receipt from its on-disk JSON form, rejecting an
// unrecognised schema before the caller can act on anything else in
// the document.
func Parse(raw []byte) (Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return Receipt{}, fmt.Errorf("receipt: parse failed: %w", err)
	}
	if r.Schema != SchemaV1 {
		return Receipt{}, fmt.Errorf("receipt: unsupported schema %q", r.Schema)
	}
	return r, nil
}

// ProofInput reproduces the exact value boundary.seal hashes, so a
// verifier can recompute meta.proof_id from a (possibly re-derived)
// graph id and result and compare it byte-for-byte against what's
// recorded.
func ProofInput(graphID, output, status string, abortReason *string) (string, error) {
	var reasonValue interface{}
	if abortReason != nil {
		reasonValue = *abortReason
	}
	return canon.DigestValueHex(map[string]interface{}{
		"graph_id":     graphID,
		"output":       output,
		"status":       status,
		"abort_reason": reasonValue,
	})
}

// sortKeys walks a decoded JSON tree and replaces every map with one
// whose keys are visited in sorted order when re-encoded. encoding/json
// already sorts map[string]interface{} keys on Marshal, so this mostly
// documents the invariant; it exists to make the canonicalisation
// explicit rather than relying on an encoding/json implementation
// detail at the call site.
func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = sortKeys(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return v
	}
}
