// Package session provides storage backends for in-flight workflow sessions.
package session

import (
	"context"
	"errors"
	"log"
	"time"

	"nyayaflow/api/internal/redact"
	"nyayaflow/api/internal/roles"
)

// ErrNotFound is returned when a session id does not exist, either because it
// never existed or because the workflow was finalized or abandoned.
var ErrNotFound = errors.New("session not found")

// Stage is a position in the workflow state machine.
type Stage string

const (
	StageStarted                  Stage = "started"
	StageAwaitingResearchApproval Stage = "awaiting_research_approval"
	StageAwaitingDraftReview      Stage = "awaiting_draft_review"
	StageComplete                 Stage = "complete"
)

// TraceEntry is one append-only audit record of an agent or human action.
type TraceEntry struct {
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Trace collects entries during one controller operation before they are
// persisted onto the session.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
}

// Add appends a trace entry with the current timestamp and logs it.
func (t *Trace) Add(agent, action, details string) {
	t.Entries = append(t.Entries, TraceEntry{
		Agent:     agent,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
	log.Printf("[%s] %s: %s", agent, action, details)
}

// Session is one in-flight generation task. Only the workflow controller
// mutates it, always through Store.Update.
type Session struct {
	ID                string          `json:"session_id"`
	Grievance         string          `json:"grievance"`
	RedactedGrievance string          `json:"redacted_grievance"`
	RedactionMap      redact.Map      `json:"redaction_map"`
	RagContext        string          `json:"rag_context,omitempty"`
	Stage             Stage           `json:"stage"`
	ResearchFindings  *roles.Findings `json:"research_findings,omitempty"`
	ApprovedResearch  *roles.Findings `json:"approved_research,omitempty"`
	CurrentDraft      string          `json:"current_draft,omitempty"`
	Iteration         int             `json:"iteration"`
	Trace             []TraceEntry    `json:"agent_traces"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Store is a keyed session store with atomic per-key read-modify-write.
// Concurrent updates to the same id are serialized; updates to different ids
// do not contend.
type Store interface {
	Create(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	// Update applies fn to the current record and replaces it atomically.
	// fn returning an error aborts the update with no mutation. The stored
	// UpdatedAt is refreshed on success.
	Update(ctx context.Context, id string, fn func(Session) (Session, error)) (Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
