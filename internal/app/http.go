package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"nyayaflow/api/internal/export"
	"nyayaflow/api/internal/roles"
	"nyayaflow/api/internal/session"
)

type HTTPServer struct {
	service    *Service
	exporter   *export.Service
	corsOrigin string
}

func NewHTTPServer(service *Service, exporter *export.Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, exporter: exporter, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"sessions": map[string]any{"status": "ok"},
		}

		if err := s.service.Ready(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["sessions"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/workflow/start" {
		s.handleStart(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/generate" {
		s.handleGenerate(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/v1/advocates" {
		s.handleAdvocates(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/export/pdf" {
		s.handleExportPDF(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	// /api/v1/workflow/{id}[/{action}]
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "v1" && parts[2] == "workflow" {
		workflowID := parts[3]

		if len(parts) == 4 {
			switch r.Method {
			case http.MethodGet:
				s.handleStatus(w, r, workflowID)
				return
			case http.MethodDelete:
				s.handleAbandon(w, r, workflowID)
				return
			}
		}

		if len(parts) == 5 && r.Method == http.MethodPost {
			switch parts[4] {
			case "approve-research":
				s.handleApproveResearch(w, r, workflowID)
				return
			case "feedback":
				s.handleFeedback(w, r, workflowID)
				return
			case "finalize":
				s.handleFinalize(w, r, workflowID)
				return
			}
		}

		if len(parts) == 5 && r.Method == http.MethodGet && parts[4] == "history" {
			s.handleHistory(w, r, workflowID)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var in StartInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	state, err := s.service.StartResearch(r.Context(), in)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *HTTPServer) handleApproveResearch(w http.ResponseWriter, r *http.Request, workflowID string) {
	var in ApproveResearchInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	state, err := s.service.ApproveResearch(r.Context(), workflowID, in)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleFeedback(w http.ResponseWriter, r *http.Request, workflowID string) {
	var in FeedbackInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	state, err := s.service.SubmitFeedback(r.Context(), workflowID, in)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request, workflowID string) {
	result, err := s.service.Finalize(r.Context(), workflowID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request, workflowID string) {
	state, err := s.service.Status(r.Context(), workflowID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleAbandon(w http.ResponseWriter, r *http.Request, workflowID string) {
	if err := s.service.Abandon(r.Context(), workflowID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, workflowID string) {
	items, err := s.service.History(r.Context(), workflowID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": workflowID, "drafts": items})
}

func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in GenerateInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.Generate(r.Context(), in)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAdvocates(w http.ResponseWriter, r *http.Request) {
	specialization := strings.TrimSpace(r.URL.Query().Get("specialization"))
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	advocates, err := s.service.Advocates(r.Context(), specialization, location)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advocates": advocates})
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not enabled", nil)
		return
	}

	var body struct {
		Title    string `json:"title"`
		Document string `json:"document"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Document) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document is required", nil)
		return
	}

	doc := export.Petition{
		Title:       body.Title,
		Body:        body.Document,
		GeneratedAt: time.Now(),
	}
	pdf, err := s.exporter.PDF(r.Context(), doc)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(body.Title)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		switch {
		case errors.Is(err, session.ErrNotFound):
			domainErr = notFoundError()
		case errors.Is(err, roles.ErrInvocation):
			domainErr = roleError(err)
		case errors.Is(err, export.ErrPDFUnavailable):
			domainErr = domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering backend is unavailable", nil)
		default:
			log.Printf("internal error: %v", err)
			domainErr = domainError(http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
		}
	}
	return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
