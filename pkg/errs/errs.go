// Package errs defines the error taxonomy shared across the execution
// boundary: sentinel kinds callers can match with errors.Is, plus the
// structured detail types that travel with them.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Each is wrapped with call-specific detail via
// fmt.Errorf("...: %w", Err*) at the point of failure.
var (
	// ErrInput marks a malformed Identity, ModelSpec, or ContextSpec.
	// Fatal to the turn; no receipt is emitted.
	ErrInput = errors.New("input error")

	// ErrPolicyLoad marks an unresolved or malformed policy document.
	// Fatal; no receipt.
	ErrPolicyLoad = errors.New("policy load error")

	// ErrContextResolution marks a hashable context source that is
	// missing or unreadable. Fatal; no receipt.
	ErrContextResolution = errors.New("context resolution error")

	// ErrBackend marks a network or backend malfunction observed
	// before any token was produced. Fatal; no receipt.
	ErrBackend = errors.New("backend error")

	// ErrIntegrity marks a replay-time signature mismatch, schema
	// mismatch, or proof recomputation divergence.
	ErrIntegrity = errors.New("integrity error")
)

// PolicyViolation is raised by admit, inspect, or finalize. Unlike the
// other kinds it is not fatal to the caller's overall flow — the
// boundary catches it and produces an ABORTED receipt, so it is a
// distinct type rather than a wrapped sentinel: callers that need to
// branch on scope/reason can type-assert instead of parsing text.
type PolicyViolation struct {
	Scope  string // "input" | "token" | "output"
	Reason string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Scope, e.Reason)
}

// NewPolicyViolation constructs a PolicyViolation.
func NewPolicyViolation(scope, reason string) *PolicyViolation {
	return &PolicyViolation{Scope: scope, Reason: reason}
}

// AsPolicyViolation reports whether err is (or wraps) a *PolicyViolation
// and returns it.
func AsPolicyViolation(err error) (*PolicyViolation, bool) {
	var pv *PolicyViolation
	if errors.As(err, &pv) {
		return pv, true
	}
	return nil, false
}

// Input wraps ErrInput with detail.
func Input(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// PolicyLoad wraps ErrPolicyLoad with detail.
func PolicyLoad(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPolicyLoad, fmt.Sprintf(format, args...))
}

// ContextResolution wraps ErrContextResolution with detail.
func ContextResolution(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrContextResolution, fmt.Sprintf(format, args...))
}

// Backend wraps ErrBackend with detail.
func Backend(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBackend, fmt.Sprintf(format, args...))
}

// Integrity wraps ErrIntegrity with detail.
func Integrity(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}
