package policy

import "testing"

func TestCompile_RejectsUnknownKind(t *testing.T) {
	_, err := Compile(Document{Version: 1, Rules: []Rule{{Kind: "xml", Value: "x", Scope: ScopeInput, Action: ActionDeny}}})
	if err == nil {
		t.Fatal("expected error for unknown rule kind")
	}
}

func TestAdmit_SubstringDenyCaseInsensitive(t *testing.T) {
	p, err := Compile(Document{Version: 1, Rules: []Rule{
		{Kind: KindSubstring, Value: "drop table", Scope: ScopeInput, Action: ActionDeny},
	}})
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Admit("Please DrOp TaBlE users")
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatal("expected admit to deny")
	}
}

func TestAdmit_AllowsCleanInput(t *testing.T) {
	p, err := Compile(Document{Version: 1, Rules: nil})
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Admit("Hello")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed {
		t.Fatalf("expected allow, got deny: %s", v.Reason)
	}
}

func TestInspect_MatchesAcrossTokenBoundary(t *testing.T) {
	p, err := Compile(Document{Version: 1, Rules: []Rule{
		{Kind: KindSubstring, Value: "response", Scope: ScopeToken, Action: ActionDeny},
	}})
	if err != nil {
		t.Fatal(err)
	}

	running := ""
	tokens := []string{"This ", "is ", "a ", "determ", "inistic ", "resp", "onse ", "A."}
	var vetoedAt = -1
	for i, tok := range tokens {
		v, err := p.Inspect(tok, running)
		if err != nil {
			t.Fatal(err)
		}
		if !v.Allowed {
			vetoedAt = i
			break
		}
		running += tok
	}
	if vetoedAt == -1 {
		t.Fatal("expected a veto once the full substring assembled across token boundaries")
	}
	if vetoedAt != 6 {
		t.Fatalf("expected veto at the token completing the match (index 6), got %d", vetoedAt)
	}
	if running != "This is a deterministic resp" {
		t.Fatalf("unexpected prefix at veto: %q", running)
	}
}

func TestFinalize_OutputScopeRegex(t *testing.T) {
	p, err := Compile(Document{Version: 1, Rules: []Rule{
		{Kind: KindRegex, Value: `\bsecret\b`, Scope: ScopeOutput, Action: ActionDeny},
	}})
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Finalize("the password is secret")
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatal("expected finalize to deny")
	}
}

func TestCELRule_DeniesOnExpression(t *testing.T) {
	p, err := Compile(Document{Version: 1, Rules: []Rule{
		{Kind: KindCEL, Value: `text.contains("forbidden")`, Scope: ScopeInput, Action: ActionDeny},
	}})
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Admit("this is forbidden content")
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatal("expected cel rule to deny")
	}

	v2, err := p.Admit("this is fine")
	if err != nil {
		t.Fatal(err)
	}
	if !v2.Allowed {
		t.Fatal("expected cel rule to allow clean input")
	}
}

func TestCompile_RejectsNonBoolCELExpression(t *testing.T) {
	_, err := Compile(Document{Version: 1, Rules: []Rule{
		{Kind: KindCEL, Value: `text.size()`, Scope: ScopeInput, Action: ActionDeny},
	}})
	if err == nil {
		t.Fatal("expected error for non-bool cel expression")
	}
}
