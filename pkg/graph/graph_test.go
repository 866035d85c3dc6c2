package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Jeevan-04/Invariant/pkg/errs"
)

type fakeResolver map[string]string

func (f fakeResolver) Digest(identifier string) (string, error) {
	h, ok := f[identifier]
	if !ok {
		return "", fmt.Errorf("no such file: %s", identifier)
	}
	return h, nil
}

func mustIdentity(t *testing.T) Identity {
	t.Helper()
	id, err := NewIdentity("u1", "engineer", "acme", "prod")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func mustModel(t *testing.T) ModelSpec {
	t.Helper()
	m, err := NewModelSpec("openai", "gpt-test", "2024-01", 7, "greedy", nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewIdentity_RejectsEmptyRole(t *testing.T) {
	_, err := NewIdentity("u1", "", "acme", "prod")
	if !errors.Is(err, errs.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestNewModelSpec_RejectsUnsupportedExtraParamType(t *testing.T) {
	_, err := NewModelSpec("openai", "gpt-test", "2024-01", 0, "greedy", map[string]interface{}{
		"top_p": 0.9,
	})
	if !errors.Is(err, errs.ErrInput) {
		t.Fatalf("expected ErrInput for float extra_param, got %v", err)
	}
}

func TestExecutionGraph_New_ResolvesAddressableSources(t *testing.T) {
	spec, err := NewContextSpec([]RawContextSource{
		{Type: SourceFile, Sensitivity: SensitivityInternal, Identifier: "notes.txt"},
		{Type: SourceMemory, Sensitivity: SensitivityPublic, Identifier: "mem:1", ContentHash: "abc123"},
	})
	if err != nil {
		t.Fatal(err)
	}

	resolver := fakeResolver{"notes.txt": "deadbeef"}
	g, err := New(mustIdentity(t), "hello", "default", mustModel(t), spec, resolver)
	if err != nil {
		t.Fatal(err)
	}

	sources := g.Context().Sources()
	if sources[0].ContentHash() != "deadbeef" {
		t.Fatalf("expected resolved hash, got %q", sources[0].ContentHash())
	}
	if sources[1].ContentHash() != "abc123" {
		t.Fatalf("expected caller-supplied hash preserved, got %q", sources[1].ContentHash())
	}
	if g.ID() == "" {
		t.Fatal("expected non-empty graph id")
	}
}

func TestExecutionGraph_New_RejectsNonAddressableWithoutHash(t *testing.T) {
	spec, err := NewContextSpec([]RawContextSource{
		{Type: SourceRAG, Sensitivity: SensitivityInternal, Identifier: "doc-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(mustIdentity(t), "hello", "default", mustModel(t), spec, fakeResolver{})
	if !errors.Is(err, errs.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestExecutionGraph_New_RejectsUnresolvableFile(t *testing.T) {
	spec, err := NewContextSpec([]RawContextSource{
		{Type: SourceFile, Sensitivity: SensitivityInternal, Identifier: "missing.txt"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(mustIdentity(t), "hello", "default", mustModel(t), spec, fakeResolver{})
	if !errors.Is(err, errs.ErrContextResolution) {
		t.Fatalf("expected ErrContextResolution, got %v", err)
	}
}

func TestExecutionGraph_ID_OrderInvariantOverContextDeclarationOrder(t *testing.T) {
	specA, err := NewContextSpec([]RawContextSource{
		{Type: SourceMemory, Sensitivity: SensitivityPublic, Identifier: "a", ContentHash: "ha"},
		{Type: SourceMemory, Sensitivity: SensitivityPublic, Identifier: "b", ContentHash: "hb"},
	})
	if err != nil {
		t.Fatal(err)
	}
	specB, err := NewContextSpec([]RawContextSource{
		{Type: SourceMemory, Sensitivity: SensitivityPublic, Identifier: "b", ContentHash: "hb"},
		{Type: SourceMemory, Sensitivity: SensitivityPublic, Identifier: "a", ContentHash: "ha"},
	})
	if err != nil {
		t.Fatal(err)
	}

	gA, err := New(mustIdentity(t), "hello", "default", mustModel(t), specA, fakeResolver{})
	if err != nil {
		t.Fatal(err)
	}
	gB, err := New(mustIdentity(t), "hello", "default", mustModel(t), specB, fakeResolver{})
	if err != nil {
		t.Fatal(err)
	}

	if gA.ID() != gB.ID() {
		t.Fatalf("graph id depends on context declaration order: %s vs %s", gA.ID(), gB.ID())
	}
}

func TestExecutionGraph_ID_ChangesWithInputPayload(t *testing.T) {
	spec, err := NewContextSpec(nil)
	if err != nil {
		t.Fatal(err)
	}
	g1, err := New(mustIdentity(t), "hello", "default", mustModel(t), spec, fakeResolver{})
	if err != nil {
		t.Fatal(err)
	}
	g2, err := New(mustIdentity(t), "goodbye", "default", mustModel(t), spec, fakeResolver{})
	if err != nil {
		t.Fatal(err)
	}
	if g1.ID() == g2.ID() {
		t.Fatal("expected distinct input payloads to produce distinct graph ids")
	}
}
