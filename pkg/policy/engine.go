package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Jeevan-04/Invariant/pkg/errs"
)

// Verdict is the outcome of admit, inspect, or finalize.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict             { return Verdict{Allowed: true} }
func deny(reason string) Verdict { return Verdict{Allowed: false, Reason: reason} }

// Policy is a compiled Document: every rule's matcher is built once at
// compile time so admit/inspect/finalize never allocate a regexp or
// recompile a CEL program per call.
type Policy struct {
	rules       []compiledRule
	tokenWindow int // longest regex/substring pattern at token scope, in runes
}

type compiledRule struct {
	rule  Rule
	re    *regexp.Regexp // set for KindRegex
	sub   string         // lower-cased, set for KindSubstring
	celFn *celPredicate  // set for KindCEL
}

// Compile builds a Policy from a parsed Document. Regexes are
// compiled case-insensitively; substrings are lower-cased once.
func Compile(doc Document) (*Policy, error) {
	p := &Policy{}
	for i, r := range doc.Rules {
		cr := compiledRule{rule: r}
		switch r.Kind {
		case KindRegex:
			re, err := regexp.Compile("(?i)" + r.Value)
			if err != nil {
				return nil, errs.PolicyLoad("rule %d: invalid regex %q: %v", i, r.Value, err)
			}
			cr.re = re
		case KindSubstring:
			cr.sub = strings.ToLower(r.Value)
			if n := utf8.RuneCountInString(r.Value); n > p.tokenWindow && r.Scope == ScopeToken {
				p.tokenWindow = n
			}
		case KindCEL:
			fn, err := compileCELPredicate(r.Value)
			if err != nil {
				return nil, errs.PolicyLoad("rule %d: invalid cel expression: %v", i, err)
			}
			cr.celFn = fn
		default:
			return nil, errs.PolicyLoad("rule %d: unknown kind %q", i, r.Kind)
		}
		if cr.re != nil && r.Scope == ScopeToken {
			if n := utf8.RuneCountInString(r.Value); n > p.tokenWindow {
				p.tokenWindow = n
			}
		}
		p.rules = append(p.rules, cr)
	}
	if p.tokenWindow == 0 {
		p.tokenWindow = 64 // no token-scope regex/substring rule; CEL rules see the full text, not the window
	}
	return p, nil
}

// Admit runs every input-scope rule against the whole input payload,
// once, before any token is drawn.
func (p *Policy) Admit(input string) (Verdict, error) {
	return p.evaluateScope(ScopeInput, input, input)
}

// Inspect runs every token-scope rule against a rolling window of the
// accumulation so far plus the newest token. runningOutput is the
// accumulation *before* token; the window guarantees a pattern
// straddling the boundary between two tokens is still matched.
func (p *Policy) Inspect(token, runningOutput string) (Verdict, error) {
	full := runningOutput + token
	// Keep the full new token untruncated and only trim the prior
	// accumulation: a pattern can end anywhere inside token (not just
	// at its very end), so truncating token itself could cut off the
	// tail of a match that straddles the boundary.
	window := tailRunes(runningOutput, p.tokenWindow) + token
	return p.evaluateScope(ScopeToken, window, full)
}

// Finalize runs every output-scope rule against the complete output.
func (p *Policy) Finalize(fullOutput string) (Verdict, error) {
	return p.evaluateScope(ScopeOutput, fullOutput, fullOutput)
}

// evaluateScope runs every rule of the given scope. regex/substring
// rules match against window (already trimmed for token scope, equal
// to the full text for input/output scope); CEL rules always see the
// untrimmed full text, since a CEL expression's effective footprint
// isn't statically bounded the way a pattern's length is.
func (p *Policy) evaluateScope(scope Scope, window, full string) (Verdict, error) {
	lowerWindow := strings.ToLower(window)
	for _, cr := range p.rules {
		if cr.rule.Scope != scope {
			continue
		}
		var matched bool
		switch cr.rule.Kind {
		case KindRegex:
			matched = cr.re.MatchString(window)
		case KindSubstring:
			matched = strings.Contains(lowerWindow, cr.sub)
		case KindCEL:
			var err error
			matched, err = cr.celFn.Eval(scope, full)
			if err != nil {
				return Verdict{}, fmt.Errorf("policy: cel rule evaluation failed: %w", err)
			}
		}
		if matched && cr.rule.Action == ActionDeny {
			return deny(fmt.Sprintf("%s rule matched %q at %s scope", cr.rule.Kind, cr.rule.Value, scope)), nil
		}
	}
	return allow(), nil
}

// tailRunes returns the last n runes of s (or all of s if shorter).
func tailRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
