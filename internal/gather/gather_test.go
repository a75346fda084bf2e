package gather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedEntry struct {
	agent, action, details string
}

type fakeTrace struct {
	entries []recordedEntry
}

func (f *fakeTrace) Add(agent, action, details string) {
	f.entries = append(f.entries, recordedEntry{agent, action, details})
}

type fakeSource struct {
	name    string
	label   string
	content string
	err     error
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Label() string { return f.label }
func (f *fakeSource) Lookup(ctx context.Context, query string) (string, error) {
	return f.content, f.err
}

func TestGatherMergesSources(t *testing.T) {
	svc := NewService(
		&fakeSource{name: "knowledge_base", label: "LOCAL PROVISIONS", content: "CPA 2019 Section 35"},
		&fakeSource{name: "web_search", label: "ONLINE RESOURCES", content: "consumer forum guide"},
	)
	trace := &fakeTrace{}

	merged := svc.Gather(context.Background(), "defective phone", trace)

	if !strings.Contains(merged, "LOCAL PROVISIONS:\nCPA 2019 Section 35") {
		t.Errorf("missing knowledge base section: %q", merged)
	}
	if !strings.Contains(merged, "ONLINE RESOURCES:\nconsumer forum guide") {
		t.Errorf("missing web section: %q", merged)
	}
}

func TestGatherIsolatesSourceFailure(t *testing.T) {
	svc := NewService(
		&fakeSource{name: "knowledge_base", label: "LOCAL PROVISIONS", err: errors.New("connection refused")},
		&fakeSource{name: "web_search", label: "ONLINE RESOURCES", content: "still works"},
	)
	trace := &fakeTrace{}

	merged := svc.Gather(context.Background(), "q", trace)

	if !strings.Contains(merged, "LOCAL PROVISIONS: No results available.") {
		t.Errorf("missing failure placeholder: %q", merged)
	}
	if !strings.Contains(merged, "still works") {
		t.Errorf("healthy source dropped: %q", merged)
	}
}

func TestGatherEmptyResultIsUnavailable(t *testing.T) {
	svc := NewService(&fakeSource{name: "web_search", label: "ONLINE RESOURCES", content: "   "})
	trace := &fakeTrace{}

	merged := svc.Gather(context.Background(), "q", trace)
	if !strings.Contains(merged, "ONLINE RESOURCES: No results available.") {
		t.Errorf("expected placeholder for empty result: %q", merged)
	}
}

func TestGatherNoSources(t *testing.T) {
	svc := NewService()
	trace := &fakeTrace{}

	if merged := svc.Gather(context.Background(), "q", trace); merged != NoContext {
		t.Errorf("expected sentinel %q, got %q", NoContext, merged)
	}
}

func TestGatherRecordsEveryInvocation(t *testing.T) {
	svc := NewService(
		&fakeSource{name: "knowledge_base", label: "LOCAL PROVISIONS", content: "x"},
		&fakeSource{name: "web_search", label: "ONLINE RESOURCES", err: errors.New("down")},
	)
	trace := &fakeTrace{}
	svc.Gather(context.Background(), "q", trace)

	var completes, unavailables int
	for _, e := range trace.entries {
		switch e.action {
		case "lookup_complete":
			completes++
		case "lookup_unavailable":
			unavailables++
		}
	}
	if completes != 1 || unavailables != 1 {
		t.Errorf("expected 1 complete and 1 unavailable entry, got %d/%d: %+v", completes, unavailables, trace.entries)
	}
	last := trace.entries[len(trace.entries)-1]
	if last.action != "context_ready" {
		t.Errorf("expected trailing context_ready entry, got %+v", last)
	}
}

func TestWebSearchLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		fmt.Fprint(w, `{"results":[{"title":"Consumer rights","content":"you may approach the district forum","url":"https://example.org"}]}`)
	}))
	defer server.Close()

	src := NewWebSearch(server.URL, "test-key", 3)
	content, err := src.Lookup(context.Background(), "defective phone refund")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !strings.Contains(content, "Consumer rights: you may approach the district forum") {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestWebSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewWebSearch(server.URL, "test-key", 3)
	if _, err := src.Lookup(context.Background(), "q"); err == nil {
		t.Error("expected error on 502 response")
	}
}
