package graph

import (
	"fmt"
	"sort"

	"github.com/Jeevan-04/Invariant/pkg/errs"
)

// ModelSpec is the frozen, declared model configuration for a turn. It
// is what the backend is expected to honour, not a report of what the
// backend actually did — the proof is meaningless if the backend
// silently deviates from it.
type ModelSpec struct {
	provider         string
	name             string
	version          string
	seed             int64
	decodingStrategy string
	extraParams      map[string]interface{}
}

// NewModelSpec validates and freezes a ModelSpec. provider, name,
// version, and decodingStrategy must be non-empty. seed is required
// at the call site; int64 zero is a valid seed, not an absence marker.
// extraParams values are restricted to string, int64/int, and bool:
// the same scalar set the canonical hasher accepts, so nothing
// constructed here can later fail to hash.
func NewModelSpec(provider, name, version string, seed int64, decodingStrategy string, extraParams map[string]interface{}) (ModelSpec, error) {
	switch {
	case provider == "":
		return ModelSpec{}, errs.Input("model_spec: provider is required")
	case name == "":
		return ModelSpec{}, errs.Input("model_spec: name is required")
	case version == "":
		return ModelSpec{}, errs.Input("model_spec: version is required")
	case decodingStrategy == "":
		return ModelSpec{}, errs.Input("model_spec: decoding_strategy is required")
	}

	frozen := make(map[string]interface{}, len(extraParams))
	for k, v := range extraParams {
		switch v.(type) {
		case string, int64, int, bool:
			frozen[k] = v
		default:
			return ModelSpec{}, errs.Input("model_spec: extra_params[%s] has unsupported scalar type %T", k, v)
		}
	}

	return ModelSpec{
		provider:         provider,
		name:             name,
		version:          version,
		seed:             seed,
		decodingStrategy: decodingStrategy,
		extraParams:      frozen,
	}, nil
}

func (m ModelSpec) Provider() string         { return m.provider }
func (m ModelSpec) Name() string             { return m.name }
func (m ModelSpec) Version() string          { return m.version }
func (m ModelSpec) Seed() int64              { return m.seed }
func (m ModelSpec) DecodingStrategy() string { return m.decodingStrategy }

// ExtraParam returns an extra parameter by key.
func (m ModelSpec) ExtraParam(key string) (interface{}, bool) {
	v, ok := m.extraParams[key]
	return v, ok
}

// ExtraParamKeys returns the sorted key set, for stable iteration at
// call sites that don't go through Canonical.
func (m ModelSpec) ExtraParamKeys() []string {
	keys := make([]string, 0, len(m.extraParams))
	for k := range m.extraParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical returns the JSON-marshalable shape consumed by the
// canonical hasher.
func (m ModelSpec) Canonical() map[string]interface{} {
	extra := make(map[string]interface{}, len(m.extraParams))
	for k, v := range m.extraParams {
		if iv, ok := v.(int); ok {
			extra[k] = int64(iv)
			continue
		}
		extra[k] = v
	}
	return map[string]interface{}{
		"provider":          m.provider,
		"name":              m.name,
		"version":           m.version,
		"seed":              m.seed,
		"decoding_strategy": m.decodingStrategy,
		"extra_params":      extra,
	}
}

// String renders a compact human-readable summary, useful in CLI
// output and log lines.
func (m ModelSpec) String() string {
	return fmt.Sprintf("%s/%s@%s seed=%d strategy=%s", m.provider, m.name, m.version, m.seed, m.decodingStrategy)
}
