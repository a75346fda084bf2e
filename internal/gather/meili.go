package gather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxProvisions = "nyayaflow_provisions"

// ProvisionRecord is one statute or aid-scheme excerpt in the knowledge base.
type ProvisionRecord struct {
	ID    string `json:"id"`
	Act   string `json:"act"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// KnowledgeBase looks up legal provisions in a Meilisearch index. It degrades
// gracefully: when the server is unreachable, Lookup errors and the aggregator
// substitutes a placeholder section.
type KnowledgeBase struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewKnowledgeBase creates the Meilisearch-backed knowledge base source and
// starts a background health monitor.
func NewKnowledgeBase(url, apiKey string) *KnowledgeBase {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	kb := &KnowledgeBase{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("gather: meilisearch unavailable at %s: %v", url, err)
		kb.healthy.Store(false)
	} else {
		kb.healthy.Store(true)
		kb.configureIndex()
	}

	go kb.healthLoop()
	return kb
}

func (kb *KnowledgeBase) configureIndex() {
	if _, err := kb.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxProvisions,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("gather: create index %s (may already exist): %v", idxProvisions, err)
	}

	index := kb.client.Index(idxProvisions)
	filterable := []interface{}{"act"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("gather: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "body", "act"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("gather: update searchable attrs: %v", err)
	}
}

func (kb *KnowledgeBase) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-kb.done:
			return
		case <-ticker.C:
			_, err := kb.client.Health()
			wasHealthy := kb.healthy.Load()
			kb.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("gather: meilisearch recovered, reconfiguring index")
				kb.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (kb *KnowledgeBase) Close() {
	close(kb.done)
}

// Healthy reports whether Meilisearch is reachable.
func (kb *KnowledgeBase) Healthy() bool {
	return kb.healthy.Load()
}

func (kb *KnowledgeBase) Name() string  { return "knowledge_base" }
func (kb *KnowledgeBase) Label() string { return "LOCAL PROVISIONS" }

// Lookup returns the top matching provisions formatted for the researcher
// prompt.
func (kb *KnowledgeBase) Lookup(ctx context.Context, query string) (string, error) {
	if !kb.healthy.Load() {
		return "", fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := kb.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: idxProvisions,
			Query:    query,
			Limit:    3,
		}},
	})
	if err != nil {
		kb.healthy.Store(false)
		return "", fmt.Errorf("meilisearch search: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		for _, hit := range result.Hits {
			record := hitToProvision(hit)
			if record.Body == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s - %s: %s", record.Act, record.Title, record.Body))
		}
	}
	return strings.Join(parts, "\n"), nil
}

// IndexProvisions bulk-loads provision records, used at bootstrap.
func (kb *KnowledgeBase) IndexProvisions(records []ProvisionRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := kb.client.Index(idxProvisions).AddDocuments(records, nil)
	return err
}

func hitToProvision(hit meili.Hit) ProvisionRecord {
	return ProvisionRecord{
		ID:    decodeString(hit, "id"),
		Act:   decodeString(hit, "act"),
		Title: decodeString(hit, "title"),
		Body:  decodeString(hit, "body"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
