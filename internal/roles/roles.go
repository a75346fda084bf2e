// Package roles defines the gateway over the three text-generation roles
// used by the workflow: researcher, drafter and reviewer.
package roles

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvocation marks a transport or parse failure talking to a role. The
// controller surfaces it without retrying; callers may resubmit the same
// operation.
var ErrInvocation = errors.New("role invocation failed")

// InvocationError wraps the underlying failure with the role that produced it.
type InvocationError struct {
	Role string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s role: %v", e.Role, e.Err)
}

func (e *InvocationError) Unwrap() error { return ErrInvocation }

// Findings is the structured output of the researcher role.
type Findings struct {
	SummaryOfFacts  []string `json:"summary_of_facts"`
	LegalProvisions []string `json:"legal_provisions"`
	MeritsScore     int      `json:"merits_score"`
	Reasoning       string   `json:"reasoning"`
	KeralaSpecific  string   `json:"kerala_specific,omitempty"`
}

// Review is the structured output of the reviewer role. Feedback is empty
// exactly when the draft is approved.
type Review struct {
	IsApproved        bool   `json:"is_approved"`
	Feedback          string `json:"feedback"`
	Reasoning         string `json:"reasoning"`
	JurisdictionCheck string `json:"jurisdiction_check,omitempty"`
	StatuteCheck      string `json:"statute_check,omitempty"`
	ToneCheck         string `json:"tone_check,omitempty"`
}

// Gateway is the uniform contract over the three roles. Implementations are
// stateless per call and safe for concurrent use across sessions.
type Gateway interface {
	// Research analyzes a grievance against the supplied context.
	Research(ctx context.Context, grievance, ragContext string) (Findings, error)
	// Draft produces a petition from findings. feedback is empty on the
	// first call and carries reviewer or human notes on refinement.
	Draft(ctx context.Context, grievance string, findings Findings, feedback string) (string, error)
	// Review audits a draft against the findings it was built from.
	Review(ctx context.Context, draft string, findings Findings) (Review, error)
}
