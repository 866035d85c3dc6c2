// Package boundary orchestrates one execution turn: load the policy,
// freeze the execution graph, admit the input, stream tokens past the
// policy one at a time, and seal a proof over whatever was produced.
// It owns the only loop in the system that is allowed to see
// unvetted model output.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Jeevan-04/Invariant/pkg/backend"
	"github.com/Jeevan-04/Invariant/pkg/canon"
	"github.com/Jeevan-04/Invariant/pkg/errs"
	"github.com/Jeevan-04/Invariant/pkg/graph"
	"github.com/Jeevan-04/Invariant/pkg/policy"
)

// Status is the terminal state a Turn reaches.
type Status string

const (
	StatusSealed  Status = "SEALED"
	StatusAborted Status = "ABORTED"
)

// Turn is the result of one run: the frozen graph, the (possibly
// partial) output, the terminal status, and the sealed proof.
type Turn struct {
	Graph       graph.ExecutionGraph
	Output      string
	Status      Status
	AbortReason *string
	Proof       string
}

// PolicyLoader resolves a policy name to a compiled policy.Policy.
// policy.Loader satisfies it.
type PolicyLoader interface {
	Load(ctx context.Context, name string) (*policy.Policy, error)
}

// Boundary drives the state machine described in the package doc. It
// is safe for concurrent use: Run holds no mutable state across
// calls except the shared rate limiter.
type Boundary struct {
	policies PolicyLoader
	resolver graph.FileResolver
	backend  backend.Backend
	limiter  *rate.Limiter
	log      *slog.Logger
}

// New builds a Boundary. limiter rate-limits how often turns may open
// a backend stream; it may be nil, which disables the limit
// (rate.NewLimiter(rate.Inf, 0) equivalent).
func New(policies PolicyLoader, resolver graph.FileResolver, be backend.Backend, limiter *rate.Limiter, log *slog.Logger) *Boundary {
	if log == nil {
		log = slog.Default()
	}
	return &Boundary{policies: policies, resolver: resolver, backend: be, limiter: limiter, log: log}
}

// Run executes one turn end to end. It returns a non-nil error only
// for fatal conditions (InputError, PolicyLoadError,
// ContextResolutionError, BackendError before any token, or an
// internal policy evaluation failure); a PolicyViolation at any
// checkpoint instead produces an ABORTED Turn with no error, since an
// aborted turn is itself a successful, distinguishable outcome.
func (b *Boundary) Run(ctx context.Context, identity graph.Identity, inputPayload string, modelSpec graph.ModelSpec, rawContext graph.ContextSpec, policyName string) (Turn, error) {
	corrID := uuid.New().String()

	// IDLE -> load_policy -> POLICY_LOADED
	compiled, err := b.policies.Load(ctx, policyName)
	if err != nil {
		b.log.Error("policy load failed", "correlation_id", corrID, "policy", policyName, "error", err)
		return Turn{}, err
	}

	// POLICY_LOADED -> freeze(model, ctx) -> FROZEN
	g, err := graph.New(identity, inputPayload, policyName, modelSpec, rawContext, b.resolver)
	if err != nil {
		b.log.Error("graph freeze failed", "correlation_id", corrID, "policy", policyName, "error", err)
		return Turn{}, err
	}
	b.log.Debug("execution graph frozen", "correlation_id", corrID, "graph_id", g.ID(), "policy", policyName)

	// FROZEN -> admit(input) -> ADMITTED | ABORTED(Deny)
	admitVerdict, err := compiled.Admit(inputPayload)
	if err != nil {
		return Turn{}, fmt.Errorf("boundary: admit evaluation failed: %w", err)
	}
	if !admitVerdict.Allowed {
		b.log.Warn("turn aborted at admit", "correlation_id", corrID, "graph_id", g.ID(), "reason", admitVerdict.Reason)
		return b.seal(g, "", StatusAborted, &admitVerdict.Reason)
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				reason := "cancelled"
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					reason = "deadline_exceeded"
				}
				return b.seal(g, "", StatusAborted, &reason)
			}
			return Turn{}, errs.Backend("rate limiter: %v", err)
		}
	}

	stream, err := b.backend.Generate(ctx, inputPayload, modelSpec)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			reason := "cancelled"
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				reason = "deadline_exceeded"
			}
			return b.seal(g, "", StatusAborted, &reason)
		}
		b.log.Error("backend generate failed", "correlation_id", corrID, "graph_id", g.ID(), "error", err)
		return Turn{}, errs.Backend("generate: %v", err)
	}

	// ADMITTED loop: pull one token at a time, vetoing deterministically.
	output, abortReason, streamErr := b.drive(ctx, stream, compiled)
	_ = stream.Close()
	if streamErr != nil {
		b.log.Error("token stream failed", "correlation_id", corrID, "graph_id", g.ID(), "error", streamErr)
		return Turn{}, streamErr
	}
	if abortReason != nil {
		b.log.Warn("turn aborted mid-stream", "correlation_id", corrID, "graph_id", g.ID(), "reason", *abortReason)
		return b.seal(g, output, StatusAborted, abortReason)
	}

	// ADMITTED -> stream_end -> FINALIZING
	finalizeVerdict, err := compiled.Finalize(output)
	if err != nil {
		return Turn{}, fmt.Errorf("boundary: finalize evaluation failed: %w", err)
	}
	if !finalizeVerdict.Allowed {
		b.log.Warn("turn aborted at finalize", "correlation_id", corrID, "graph_id", g.ID(), "reason", finalizeVerdict.Reason)
		return b.seal(g, output, StatusAborted, &finalizeVerdict.Reason)
	}

	// FINALIZING -> finalize(Ok) -> SEALED
	b.log.Debug("turn sealed", "correlation_id", corrID, "graph_id", g.ID())
	return b.seal(g, output, StatusSealed, nil)
}

// drive pulls tokens one at a time, offering each to the policy's
// per-token predicate. It returns the accepted output, a non-nil
// abort reason on veto or context cancellation, or a fatal error if
// the backend fails before any token was produced (or the policy
// itself fails to evaluate).
func (b *Boundary) drive(ctx context.Context, stream backend.TokenStream, compiled *policy.Policy) (output string, abortReason *string, err error) {
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Caller-initiated cancellation and deadline expiry are both
			// modelled as a synthetic veto, not an error.
			reason := "cancelled"
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				reason = "deadline_exceeded"
			}
			return output, &reason, nil
		}

		tok, ok, nextErr := stream.Next()
		if nextErr != nil {
			if output == "" {
				return "", nil, errs.Backend("stream: %v", nextErr)
			}
			reason := fmt.Sprintf("backend_error: %v", nextErr)
			return output, &reason, nil
		}
		if !ok {
			return output, nil, nil
		}

		verdict, verr := compiled.Inspect(tok, output)
		if verr != nil {
			return output, nil, fmt.Errorf("boundary: inspect evaluation failed: %w", verr)
		}
		if !verdict.Allowed {
			reason := verdict.Reason
			return output, &reason, nil
		}
		output += tok
	}
}

// seal computes the proof over the frozen graph id, output, status,
// and abort reason, per the canonical encoding C1 defines.
func (b *Boundary) seal(g graph.ExecutionGraph, output string, status Status, abortReason *string) (Turn, error) {
	var reasonValue interface{}
	if abortReason != nil {
		reasonValue = *abortReason
	}
	proof, err := canon.DigestValueHex(map[string]interface{}{
		"graph_id":     g.ID(),
		"output":       output,
		"status":       string(status),
		"abort_reason": reasonValue,
	})
	if err != nil {
		return Turn{}, errs.Integrity("boundary: sealing failed: %v", err)
	}
	return Turn{Graph: g, Output: output, Status: status, AbortReason: abortReason, Proof: proof}, nil
}
