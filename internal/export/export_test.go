package export

import (
	"strings"
	"testing"
	"time"
)

func TestHTMLRendersParagraphs(t *testing.T) {
	svc := New()

	html, err := svc.HTML(Petition{
		Title:       "Consumer Complaint",
		Body:        "First paragraph of the petition.\n\nSecond paragraph with details.",
		GeneratedAt: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<title>Consumer Complaint</title>") {
		t.Error("missing title")
	}
	if !strings.Contains(html, "<p>First paragraph of the petition.</p>") {
		t.Error("missing first paragraph")
	}
	if !strings.Contains(html, "<p>Second paragraph with details.</p>") {
		t.Error("missing second paragraph")
	}
	if !strings.Contains(html, "14 March 2026") {
		t.Error("missing generated date")
	}
}

func TestHTMLEscapesBody(t *testing.T) {
	svc := New()

	html, err := svc.HTML(Petition{Title: "T", Body: "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("body was not escaped")
	}
}

func TestHTMLDefaultsTitle(t *testing.T) {
	svc := New()

	html, err := svc.HTML(Petition{Body: "Body."})
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<title>Petition</title>") {
		t.Error("missing default title")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Consumer Complaint", "Consumer-Complaint.pdf"},
		{"", "petition.pdf"},
		{"///", "petition.pdf"},
		{"a b/c", "a-bc.pdf"},
	}
	for _, tc := range tests {
		if got := Filename(tc.title); got != tc.want {
			t.Errorf("Filename(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestFilenameTruncates(t *testing.T) {
	got := Filename(strings.Repeat("a", 80))
	if got != strings.Repeat("a", 50)+".pdf" {
		t.Errorf("Filename length = %d", len(got))
	}
}
