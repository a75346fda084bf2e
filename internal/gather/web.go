package gather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebSearch queries an external search API for online resources relevant to
// the grievance.
type WebSearch struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewWebSearch creates the web search source.
func NewWebSearch(endpoint, apiKey string, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &WebSearch{
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 12 * time.Second},
	}
}

func (w *WebSearch) Name() string  { return "web_search" }
func (w *WebSearch) Label() string { return "ONLINE RESOURCES" }

type webSearchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type webSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

func (w *WebSearch) Lookup(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(webSearchRequest{
		APIKey:      w.apiKey,
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  w.maxResults,
	})
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search: unexpected status %d", resp.StatusCode)
	}

	var body webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var parts []string
	for i, result := range body.Results {
		if i >= w.maxResults {
			break
		}
		if strings.TrimSpace(result.Content) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", result.Title, result.Content))
	}
	return strings.Join(parts, "\n\n"), nil
}
