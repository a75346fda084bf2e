package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Interface compliance check.
var _ Gateway = (*GeminiGateway)(nil)

const defaultModel = "gemini-2.5-flash"

const researcherPrompt = `You are an elite Legal Research Assistant specializing in Indian Constitutional and Civil Law.
Analyze the citizen's grievance and identify the legal grounds for a case.
Break the story into key facts, cite specific Indian Acts and Sections (use BNS, not the repealed IPC, for criminal matters), and note Kerala-specific rules where relevant.
Respond with JSON only: {"summary_of_facts": [...], "legal_provisions": [...], "merits_score": 1-10, "reasoning": "...", "kerala_specific": "..."}`

const drafterPrompt = `You are a Senior Legal Draftsman. Transform the research findings into a formal petition
following Indian legal conventions, with To, From, Subject, Body and Prayer sections.
When reviewer feedback is present, address every point of it in the revision.
Respond with the petition text only.`

const reviewerPrompt = `You are a Senior Advocate of the Kerala High Court auditing a legal draft for zero-error compliance:
jurisdiction, statute validity (no repealed laws), citation accuracy, tone and structure.
Respond with JSON only: {"is_approved": bool, "feedback": "empty when approved", "reasoning": "...", "jurisdiction_check": "...", "statute_check": "...", "tone_check": "..."}`

// GeminiGateway implements [Gateway] against the Google Gemini API.
type GeminiGateway struct {
	client *genai.Client
	model  string
}

// Option configures a [GeminiGateway].
type Option func(*GeminiGateway)

// WithModel overrides the default model ID.
func WithModel(model string) Option {
	return func(g *GeminiGateway) { g.model = model }
}

// NewGemini creates a Gemini-backed role gateway.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	g := &GeminiGateway{client: client, model: defaultModel}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

func (g *GeminiGateway) Research(ctx context.Context, grievance, ragContext string) (Findings, error) {
	if ragContext == "" {
		ragContext = "No additional context provided."
	}
	prompt := fmt.Sprintf("User Grievance:\n%s\n\nRelevant Legal Context:\n%s\n\nProvide your research findings in JSON format.", grievance, ragContext)

	raw, err := g.generate(ctx, researcherPrompt, prompt, 0.1, true)
	if err != nil {
		return Findings{}, &InvocationError{Role: "researcher", Err: err}
	}

	var findings Findings
	if err := json.Unmarshal([]byte(stripFences(raw)), &findings); err != nil {
		return Findings{}, &InvocationError{Role: "researcher", Err: fmt.Errorf("parse response: %w", err)}
	}
	if findings.MeritsScore < 1 || findings.MeritsScore > 10 {
		return Findings{}, &InvocationError{Role: "researcher", Err: fmt.Errorf("merits score %d out of range", findings.MeritsScore)}
	}
	return findings, nil
}

func (g *GeminiGateway) Draft(ctx context.Context, grievance string, findings Findings, feedback string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Grievance:\n%s\n\nResearch Findings:\n%s\n", grievance, FormatFindings(findings))
	if feedback != "" {
		fmt.Fprintf(&sb, "\nREVIEWER FEEDBACK (address these issues):\n%s\n", feedback)
	}
	sb.WriteString("\nDraft the petition based on the above information.")

	draft, err := g.generate(ctx, drafterPrompt, sb.String(), 0.2, false)
	if err != nil {
		return "", &InvocationError{Role: "drafter", Err: err}
	}
	if strings.TrimSpace(draft) == "" {
		return "", &InvocationError{Role: "drafter", Err: fmt.Errorf("empty draft")}
	}
	return draft, nil
}

func (g *GeminiGateway) Review(ctx context.Context, draft string, findings Findings) (Review, error) {
	prompt := fmt.Sprintf("Research Findings:\n%s\n\nLegal Draft to Review:\n%s\n\nProvide your audit results in JSON format.", FormatFindings(findings), draft)

	raw, err := g.generate(ctx, reviewerPrompt, prompt, 0, true)
	if err != nil {
		return Review{}, &InvocationError{Role: "reviewer", Err: err}
	}

	var review Review
	if err := json.Unmarshal([]byte(stripFences(raw)), &review); err != nil {
		return Review{}, &InvocationError{Role: "reviewer", Err: fmt.Errorf("parse response: %w", err)}
	}
	return review, nil
}

func (g *GeminiGateway) generate(ctx context.Context, system, prompt string, temperature float32, jsonMode bool) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature: &temperature,
	}
	if jsonMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

// FormatFindings renders findings as the plain-text block the drafter and
// reviewer prompts expect.
func FormatFindings(f Findings) string {
	return fmt.Sprintf(
		"Summary of Facts: %s\nLegal Provisions: %s\nMerits Score: %d/10\nReasoning: %s\nKerala-Specific: %s",
		strings.Join(f.SummaryOfFacts, "; "),
		strings.Join(f.LegalProvisions, "; "),
		f.MeritsScore,
		f.Reasoning,
		orNone(f.KeralaSpecific),
	)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

// stripFences removes a surrounding markdown code fence from a model reply.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
