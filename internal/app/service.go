package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"nyayaflow/api/internal/archive"
	"nyayaflow/api/internal/config"
	"nyayaflow/api/internal/directory"
	"nyayaflow/api/internal/drafthistory"
	"nyayaflow/api/internal/gather"
	"nyayaflow/api/internal/redact"
	"nyayaflow/api/internal/roles"
	"nyayaflow/api/internal/session"
	"nyayaflow/api/internal/util"
)

type StartInput struct {
	Grievance string `json:"grievance"`
}

type ApproveResearchInput struct {
	Approved bool   `json:"approved"`
	Comments string `json:"comments"`
	// EditedFindings carries the human's corrections to the research. When
	// set on approval it replaces the researcher's output wholesale and the
	// drafter works from the edited copy.
	EditedFindings *roles.Findings `json:"edited_findings,omitempty"`
}

type FeedbackInput struct {
	Feedback string `json:"feedback"`
}

type GenerateInput struct {
	Grievance string `json:"grievance"`
}

// WorkflowState is the controller's view of an in-flight workflow, returned
// from every stage transition. Draft and Review are set only when the
// transition produced them. All text still carries redaction placeholders.
type WorkflowState struct {
	WorkflowID string               `json:"workflow_id"`
	Stage      session.Stage        `json:"stage"`
	Iteration  int                  `json:"iteration"`
	Research   *roles.Findings      `json:"research,omitempty"`
	Draft      string               `json:"draft,omitempty"`
	Review     *roles.Review        `json:"review,omitempty"`
	Trace      []session.TraceEntry `json:"agent_traces"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// FinalResult is the terminal output of a human-approved workflow. Document
// has the original personal identifiers restored.
type FinalResult struct {
	WorkflowID           string               `json:"workflow_id"`
	Status               string               `json:"status"`
	Document             string               `json:"document"`
	Iterations           int                  `json:"iterations"`
	RecommendedAdvocates []directory.Advocate `json:"recommended_advocates,omitempty"`
	Trace                []session.TraceEntry `json:"agent_traces"`
}

// GenerateResult is the output of the automatic, non-interactive mode.
type GenerateResult struct {
	Status     string               `json:"status"`
	Document   string               `json:"document"`
	Iterations int                  `json:"iterations"`
	Review     *roles.Review        `json:"final_review,omitempty"`
	Trace      []session.TraceEntry `json:"agent_traces"`
}

const (
	StatusApproved             = "approved"
	StatusApprovedByHuman      = "approved_by_human"
	StatusMaxIterationsReached = "max_iterations_reached"
)

const defaultMaxIterations = 3

type contextGatherer interface {
	Gather(ctx context.Context, query string, trace gather.Recorder) string
}

type draftHistory interface {
	RecordDraft(workflowID string, iteration int, draft, author string) (drafthistory.CommitInfo, error)
	History(workflowID string, limit int) ([]drafthistory.CommitInfo, error)
	Remove(workflowID string) error
}

type advocateDirectory interface {
	List(ctx context.Context, specialization, location string) ([]directory.Advocate, error)
	Recommend(ctx context.Context, practiceAreas []string, limit int) ([]directory.Advocate, error)
}

type archiveStore interface {
	Store(ctx context.Context, rec archive.Record) (string, error)
}

type Service struct {
	cfg           config.Config
	sessions      session.Store
	gateway       roles.Gateway
	gatherer      contextGatherer
	history       draftHistory
	directory     advocateDirectory
	archive       archiveStore
	maxIterations int
}

// New wires the workflow controller. History, advocates and archive are
// optional; pass nil to run without them.
func New(cfg config.Config, sessions session.Store, gateway roles.Gateway, gatherer *gather.Service,
	history *drafthistory.Service, advocates *directory.Directory, archiveSvc *archive.Service) *Service {

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	svc := &Service{
		cfg:           cfg,
		sessions:      sessions,
		gateway:       gateway,
		gatherer:      gatherer,
		maxIterations: maxIterations,
	}
	if history != nil {
		svc.history = history
	}
	if advocates != nil {
		svc.directory = advocates
	}
	if archiveSvc != nil {
		svc.archive = archiveSvc
	}
	return svc
}

// StartResearch opens a new workflow: redacts the grievance, gathers
// supporting context and runs the researcher. The session is created only
// after the researcher succeeds, so a failed start leaves no state behind.
func (s *Service) StartResearch(ctx context.Context, in StartInput) (WorkflowState, error) {
	grievance := strings.TrimSpace(in.Grievance)
	if grievance == "" {
		return WorkflowState{}, validationError("grievance is required")
	}

	trace := &session.Trace{}
	trace.Add("orchestrator", "workflow_started", "Received citizen grievance")

	redacted, mapping := redact.Encode(grievance)
	trace.Add("redactor", "pii_redacted", fmt.Sprintf("Masked %d personal identifiers", len(mapping)))

	ragContext := s.gatherer.Gather(ctx, redacted, trace)

	findings, err := s.gateway.Research(ctx, redacted, ragContext)
	if err != nil {
		return WorkflowState{}, err
	}
	trace.Add("researcher", "research_complete", fmt.Sprintf("Merits score %d/10", findings.MeritsScore))

	now := time.Now().UTC()
	sess := session.Session{
		ID:                util.NewID("wf"),
		Grievance:         grievance,
		RedactedGrievance: redacted,
		RedactionMap:      mapping,
		RagContext:        ragContext,
		Stage:             session.StageAwaitingResearchApproval,
		ResearchFindings:  &findings,
		Trace:             trace.Entries,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return WorkflowState{}, fmt.Errorf("create session: %w", err)
	}
	return stateOf(sess, "", nil), nil
}

// ApproveResearch advances an awaiting-research workflow. Approval runs the
// drafter and reviewer and moves to draft review; rejection re-runs the
// researcher with the human's comments folded in and stays in place.
func (s *Service) ApproveResearch(ctx context.Context, workflowID string, in ApproveResearchInput) (WorkflowState, error) {
	sess, err := s.sessions.Get(ctx, workflowID)
	if err != nil {
		return WorkflowState{}, err
	}
	if sess.Stage != session.StageAwaitingResearchApproval {
		return WorkflowState{}, invalidTransitionError(sess.Stage, "approve-research")
	}

	if !in.Approved {
		return s.rerunResearch(ctx, sess, in.Comments)
	}

	trace := &session.Trace{}
	findings := sess.ResearchFindings
	if in.EditedFindings != nil {
		findings = in.EditedFindings
		trace.Add("human", "research_approved", "Research approved with human edits")
	} else {
		trace.Add("human", "research_approved", strings.TrimSpace(in.Comments))
	}

	draft, err := s.gateway.Draft(ctx, sess.RedactedGrievance, *findings, "")
	if err != nil {
		return WorkflowState{}, err
	}
	trace.Add("drafter", "draft_complete", fmt.Sprintf("Produced draft of %d characters", len(draft)))

	review := s.advisoryReview(ctx, draft, *findings, trace)

	updated, err := s.sessions.Update(ctx, workflowID, func(cur session.Session) (session.Session, error) {
		if cur.Stage != session.StageAwaitingResearchApproval {
			return cur, invalidTransitionError(cur.Stage, "approve-research")
		}
		cur.ResearchFindings = findings
		cur.ApprovedResearch = findings
		cur.CurrentDraft = draft
		cur.Iteration = 1
		cur.Stage = session.StageAwaitingDraftReview
		cur.Trace = append(cur.Trace, trace.Entries...)
		return cur, nil
	})
	if err != nil {
		return WorkflowState{}, err
	}

	s.recordDraft(workflowID, 1, draft)
	return stateOf(updated, draft, review), nil
}

// advisoryReview runs the reviewer over a draft the human will judge anyway.
// A reviewer outage degrades to no review instead of failing the operation.
func (s *Service) advisoryReview(ctx context.Context, draft string, findings roles.Findings, trace *session.Trace) *roles.Review {
	review, err := s.gateway.Review(ctx, draft, findings)
	if err != nil {
		log.Printf("advisory review failed: %v", err)
		trace.Add("reviewer", "review_unavailable", "Automated review skipped; awaiting human judgment")
		return nil
	}
	trace.Add("reviewer", "review_complete", reviewSummary(review))
	return &review
}

func (s *Service) rerunResearch(ctx context.Context, sess session.Session, comments string) (WorkflowState, error) {
	trace := &session.Trace{}
	trace.Add("human", "research_rejected", strings.TrimSpace(comments))

	grievance := sess.RedactedGrievance
	if guidance := strings.TrimSpace(comments); guidance != "" {
		grievance = fmt.Sprintf("%s\n\nReviewer guidance: %s", grievance, guidance)
	}

	findings, err := s.gateway.Research(ctx, grievance, sess.RagContext)
	if err != nil {
		return WorkflowState{}, err
	}
	trace.Add("researcher", "research_complete", fmt.Sprintf("Merits score %d/10", findings.MeritsScore))

	updated, err := s.sessions.Update(ctx, sess.ID, func(cur session.Session) (session.Session, error) {
		if cur.Stage != session.StageAwaitingResearchApproval {
			return cur, invalidTransitionError(cur.Stage, "approve-research")
		}
		cur.ResearchFindings = &findings
		cur.Trace = append(cur.Trace, trace.Entries...)
		return cur, nil
	})
	if err != nil {
		return WorkflowState{}, err
	}
	return stateOf(updated, "", nil), nil
}

// SubmitFeedback runs one refinement iteration: the drafter reworks the
// current draft under the human's feedback and the reviewer audits the
// result. The iteration count is bounded; past the bound the last draft
// stays finalizable but no further refinement is accepted.
func (s *Service) SubmitFeedback(ctx context.Context, workflowID string, in FeedbackInput) (WorkflowState, error) {
	feedback := strings.TrimSpace(in.Feedback)
	if feedback == "" {
		return WorkflowState{}, validationError("feedback is required")
	}

	sess, err := s.sessions.Get(ctx, workflowID)
	if err != nil {
		return WorkflowState{}, err
	}
	if sess.Stage != session.StageAwaitingDraftReview {
		return WorkflowState{}, invalidTransitionError(sess.Stage, "feedback")
	}
	if sess.Iteration >= s.maxIterations {
		return WorkflowState{}, maxIterationsError(s.maxIterations)
	}

	trace := &session.Trace{}
	trace.Add("human", "feedback_received", feedback)

	draft, err := s.gateway.Draft(ctx, sess.RedactedGrievance, *sess.ApprovedResearch, feedback)
	if err != nil {
		return WorkflowState{}, err
	}
	trace.Add("drafter", "draft_complete", fmt.Sprintf("Revised draft of %d characters", len(draft)))

	review := s.advisoryReview(ctx, draft, *sess.ApprovedResearch, trace)

	updated, err := s.sessions.Update(ctx, workflowID, func(cur session.Session) (session.Session, error) {
		if cur.Stage != session.StageAwaitingDraftReview {
			return cur, invalidTransitionError(cur.Stage, "feedback")
		}
		if cur.Iteration != sess.Iteration {
			return cur, invalidTransitionError(cur.Stage, "feedback")
		}
		cur.CurrentDraft = draft
		cur.Iteration++
		cur.Trace = append(cur.Trace, trace.Entries...)
		return cur, nil
	})
	if err != nil {
		return WorkflowState{}, err
	}

	s.recordDraft(workflowID, updated.Iteration, draft)
	return stateOf(updated, draft, review), nil
}

// Finalize accepts the current draft, restores the redacted identifiers and
// closes the workflow. The session is removed; the workflow id stops
// resolving afterwards.
func (s *Service) Finalize(ctx context.Context, workflowID string) (FinalResult, error) {
	var document string
	updated, err := s.sessions.Update(ctx, workflowID, func(cur session.Session) (session.Session, error) {
		if cur.Stage != session.StageAwaitingDraftReview {
			return cur, invalidTransitionError(cur.Stage, "finalize")
		}
		document = redact.Decode(cur.CurrentDraft, cur.RedactionMap)

		trace := &session.Trace{}
		trace.Add("human", "document_approved", "Final draft accepted")
		trace.Add("redactor", "pii_restored", "Original identifiers restored in final document")
		cur.Stage = session.StageComplete
		cur.Trace = append(cur.Trace, trace.Entries...)
		return cur, nil
	})
	if err != nil {
		return FinalResult{}, err
	}

	result := FinalResult{
		WorkflowID: workflowID,
		Status:     StatusApprovedByHuman,
		Document:   document,
		Iterations: updated.Iteration,
		Trace:      updated.Trace,
	}

	if s.directory != nil && updated.ApprovedResearch != nil {
		advocates, err := s.directory.Recommend(ctx, updated.ApprovedResearch.LegalProvisions, 3)
		if err != nil {
			log.Printf("finalize %s: advocate recommendation failed: %v", workflowID, err)
		} else {
			result.RecommendedAdvocates = advocates
		}
	}

	if s.archive != nil {
		rec := archive.Record{
			WorkflowID:  workflowID,
			Status:      StatusApprovedByHuman,
			Document:    document,
			Iterations:  updated.Iteration,
			TraceLength: len(updated.Trace),
		}
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.archive.Store(archiveCtx, rec); err != nil {
				log.Printf("finalize %s: archive failed: %v", workflowID, err)
			}
		}()
	}

	if err := s.sessions.Delete(ctx, workflowID); err != nil {
		log.Printf("finalize %s: delete session: %v", workflowID, err)
	}
	return result, nil
}

// Status returns the current state of an in-flight workflow. A completed
// session that outlived its deletion is reported as not found; its id must
// stop resolving once finalized.
func (s *Service) Status(ctx context.Context, workflowID string) (WorkflowState, error) {
	sess, err := s.sessions.Get(ctx, workflowID)
	if err != nil {
		return WorkflowState{}, err
	}
	if sess.Stage == session.StageComplete {
		return WorkflowState{}, session.ErrNotFound
	}
	return stateOf(sess, sess.CurrentDraft, nil), nil
}

// Abandon drops an in-flight workflow and its draft history.
func (s *Service) Abandon(ctx context.Context, workflowID string) error {
	if err := s.sessions.Delete(ctx, workflowID); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.Remove(workflowID); err != nil {
			log.Printf("abandon %s: remove draft history: %v", workflowID, err)
		}
	}
	return nil
}

// History lists the recorded draft iterations for a workflow, newest first.
func (s *Service) History(ctx context.Context, workflowID string) ([]drafthistory.CommitInfo, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "draft history is not enabled", nil)
	}
	if _, err := s.sessions.Get(ctx, workflowID); err != nil {
		return nil, err
	}
	items, err := s.history.History(workflowID, 0)
	if err != nil {
		// No commits yet for a session that exists.
		return []drafthistory.CommitInfo{}, nil
	}
	return items, nil
}

// Advocates lists the advocate directory with optional filters.
func (s *Service) Advocates(ctx context.Context, specialization, location string) ([]directory.Advocate, error) {
	if s.directory == nil {
		return nil, domainError(http.StatusServiceUnavailable, "DIRECTORY_UNAVAILABLE", "advocate directory is not enabled", nil)
	}
	advocates, err := s.directory.List(ctx, specialization, location)
	if err != nil {
		return nil, fmt.Errorf("list advocates: %w", err)
	}
	if advocates == nil {
		advocates = []directory.Advocate{}
	}
	return advocates, nil
}

// Generate runs the full pipeline without human checkpoints: research once,
// then draft and review until the reviewer approves or the iteration bound
// is hit. No session is persisted; the whole run is request-scoped.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	grievance := strings.TrimSpace(in.Grievance)
	if grievance == "" {
		return GenerateResult{}, validationError("grievance is required")
	}

	trace := &session.Trace{}
	trace.Add("orchestrator", "workflow_started", "Automatic generation requested")

	redacted, mapping := redact.Encode(grievance)
	trace.Add("redactor", "pii_redacted", fmt.Sprintf("Masked %d personal identifiers", len(mapping)))

	ragContext := s.gatherer.Gather(ctx, redacted, trace)

	findings, err := s.gateway.Research(ctx, redacted, ragContext)
	if err != nil {
		return GenerateResult{}, err
	}
	trace.Add("researcher", "research_complete", fmt.Sprintf("Merits score %d/10", findings.MeritsScore))

	var (
		draft      string
		review     roles.Review
		iterations int
		feedback   string
		status     = StatusMaxIterationsReached
	)
	for i := 1; i <= s.maxIterations; i++ {
		iterations = i

		draft, err = s.gateway.Draft(ctx, redacted, findings, feedback)
		if err != nil {
			return GenerateResult{}, err
		}
		trace.Add("drafter", "draft_complete", fmt.Sprintf("Iteration %d draft of %d characters", i, len(draft)))

		review, err = s.gateway.Review(ctx, draft, findings)
		if err != nil {
			return GenerateResult{}, err
		}
		trace.Add("reviewer", "review_complete", reviewSummary(review))

		if review.IsApproved {
			status = StatusApproved
			break
		}
		feedback = review.Feedback
	}
	if status == StatusMaxIterationsReached {
		trace.Add("orchestrator", "max_iterations_reached",
			fmt.Sprintf("Returning best draft after %d iterations", iterations))
	}

	document := redact.Decode(draft, mapping)
	trace.Add("redactor", "pii_restored", "Original identifiers restored in final document")

	return GenerateResult{
		Status:     status,
		Document:   document,
		Iterations: iterations,
		Review:     &review,
		Trace:      trace.Entries,
	}, nil
}

// Ready reports whether the backing session store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) recordDraft(workflowID string, iteration int, draft string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.RecordDraft(workflowID, iteration, draft, "drafter"); err != nil {
		log.Printf("workflow %s: record draft iteration %d: %v", workflowID, iteration, err)
	}
}

func stateOf(sess session.Session, draft string, review *roles.Review) WorkflowState {
	return WorkflowState{
		WorkflowID: sess.ID,
		Stage:      sess.Stage,
		Iteration:  sess.Iteration,
		Research:   sess.ResearchFindings,
		Draft:      draft,
		Review:     review,
		Trace:      sess.Trace,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
}

func reviewSummary(review roles.Review) string {
	if review.IsApproved {
		return "Draft approved"
	}
	return "Revisions requested: " + review.Feedback
}
