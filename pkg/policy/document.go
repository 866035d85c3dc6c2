// Package policy compiles policy documents into the three predicates
// the execution boundary consults: admit, inspect, and finalize. A
// policy is data — rule lists and CEL expressions — evaluated by pure,
// side-effect-free logic; nothing in this package touches the clock,
// randomness, or the network.
package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Scope names where a rule applies.
type Scope string

const (
	ScopeInput  Scope = "input"
	ScopeToken  Scope = "token"
	ScopeOutput Scope = "output"
)

// Kind names a rule's matching strategy.
type Kind string

const (
	KindRegex     Kind = "regex"
	KindSubstring Kind = "substring"
	KindCEL       Kind = "cel"
)

// Action names what a matching rule does. "deny" is the only action
// the mandatory rule-list engine defines.
type Action string

const ActionDeny Action = "deny"

// Rule is one entry of a policy document's rule list.
type Rule struct {
	Kind   Kind   `json:"kind"`
	Value  string `json:"value"`
	Scope  Scope  `json:"scope"`
	Action Action `json:"action"`
}

// Document is the on-disk JSON shape of a policy file: {"version":1,
// "rules":[...]}.
type Document struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

const docSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "rules"],
  "properties": {
    "version": {"type": "integer", "const": 1},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind", "value", "scope", "action"],
        "properties": {
          "kind": {"enum": ["regex", "substring", "cel"]},
          "value": {"type": "string", "minLength": 1},
          "scope": {"enum": ["input", "token", "output"]},
          "action": {"enum": ["deny"]}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var docSchema = mustCompileDocSchema()

func mustCompileDocSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://invariant.local/schemas/policy-document.schema.json"
	if err := c.AddResource(url, strings.NewReader(docSchemaJSON)); err != nil {
		panic(fmt.Sprintf("policy: invalid embedded document schema: %v", err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded document schema fails to compile: %v", err))
	}
	return s
}

// ParseDocument validates raw bytes against the policy document schema
// and unmarshals them into a Document. Schema validation catches
// malformed documents (unknown kind/scope/action, missing fields)
// before any rule is compiled.
func ParseDocument(raw []byte) (Document, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Document{}, fmt.Errorf("policy: invalid json: %w", err)
	}
	if err := docSchema.Validate(generic); err != nil {
		return Document{}, fmt.Errorf("policy: document failed schema validation: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("policy: unmarshal: %w", err)
	}
	return doc, nil
}
