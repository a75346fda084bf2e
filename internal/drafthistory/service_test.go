package drafthistory

import (
	"strings"
	"sync"
	"testing"
)

func TestRecordDraftInitializesRepo(t *testing.T) {
	svc := New(t.TempDir())

	info, err := svc.RecordDraft("wf_abc", 1, "First draft body.", "drafter")
	if err != nil {
		t.Fatalf("RecordDraft: %v", err)
	}
	if info.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if !strings.Contains(info.Message, "iteration 1") {
		t.Errorf("unexpected message %q", info.Message)
	}
	if info.Author != "drafter" {
		t.Errorf("author = %q, want drafter", info.Author)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := New(t.TempDir())

	for i := 1; i <= 3; i++ {
		if _, err := svc.RecordDraft("wf_abc", i, "draft body", "drafter"); err != nil {
			t.Fatalf("RecordDraft %d: %v", i, err)
		}
	}

	items, err := svc.History("wf_abc", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	if !strings.Contains(items[0].Message, "iteration 3") {
		t.Errorf("first item = %q, want iteration 3", items[0].Message)
	}
	if !strings.Contains(items[2].Message, "iteration 1") {
		t.Errorf("last item = %q, want iteration 1", items[2].Message)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	for i := 1; i <= 4; i++ {
		if _, err := svc.RecordDraft("wf_abc", i, "draft body", "drafter"); err != nil {
			t.Fatalf("RecordDraft %d: %v", i, err)
		}
	}

	items, err := svc.History("wf_abc", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
}

func TestHistoryUnknownWorkflow(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History("wf_missing", 0); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}

func TestRemove(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.RecordDraft("wf_abc", 1, "draft body", "drafter"); err != nil {
		t.Fatalf("RecordDraft: %v", err)
	}
	if err := svc.Remove("wf_abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.History("wf_abc", 0); err == nil {
		t.Fatal("expected error after Remove")
	}
}

func TestConcurrentRecordsSameWorkflow(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := svc.RecordDraft("wf_abc", n, "draft body", "drafter"); err != nil {
				t.Errorf("RecordDraft %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	items, err := svc.History("wf_abc", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 8 {
		t.Fatalf("len = %d, want 8", len(items))
	}
}
