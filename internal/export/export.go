// Package export renders finalized petition documents to HTML and PDF.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ErrPDFUnavailable indicates the PDF rendering runtime is not installed.
var ErrPDFUnavailable = errors.New("export pdf dependency missing")

// Petition is a finalized document submitted for export.
type Petition struct {
	Title       string
	Body        string
	GeneratedAt time.Time
}

type Service struct{}

func New() *Service {
	return &Service{}
}

const petitionTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Georgia, 'Times New Roman', serif; margin: 0; color: #1a1a1a; }
  h1 { font-size: 20px; text-align: center; text-transform: uppercase; letter-spacing: 1px; }
  .generated { text-align: center; color: #666; font-size: 12px; margin-bottom: 32px; }
  p { font-size: 14px; line-height: 1.7; text-align: justify; }
  .footer { margin-top: 48px; border-top: 1px solid #ccc; padding-top: 8px; color: #666; font-size: 11px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="generated">Generated on {{formatDate .GeneratedAt "2 January 2006"}}</div>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}<div class="footer">Prepared with NyayaFlow legal aid assistance. This document is a draft and does not constitute legal advice.</div>
</body>
</html>
`

var petitionTmpl = template.Must(template.New("petition").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(petitionTemplate))

type templateData struct {
	Title       string
	GeneratedAt time.Time
	Paragraphs  []string
}

// HTML renders the petition to a standalone HTML page. The body is treated
// as plain text; blank lines separate paragraphs.
func (s *Service) HTML(p Petition) (string, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Petition"
	}
	generatedAt := p.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var paragraphs []string
	for _, block := range strings.Split(p.Body, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}

	var buf bytes.Buffer
	err := petitionTmpl.Execute(&buf, templateData{
		Title:       title,
		GeneratedAt: generatedAt,
		Paragraphs:  paragraphs,
	})
	if err != nil {
		return "", fmt.Errorf("render petition template: %w", err)
	}
	return buf.String(), nil
}

// PDF renders the petition through headless Chrome.
func (s *Service) PDF(ctx context.Context, p Petition) ([]byte, error) {
	html, err := s.HTML(p)
	if err != nil {
		return nil, err
	}
	return renderPDF(ctx, html)
}

// Filename derives a safe attachment filename from the petition title.
func Filename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "petition"
	}
	return result + ".pdf"
}
