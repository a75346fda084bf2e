// Package gather collects supplementary context for the researcher role from
// independently-failing lookup sources.
package gather

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// NoContext is returned when no source is enabled or every source failed.
const NoContext = "No additional context available."

const lookupTimeout = 15 * time.Second

// Recorder receives one audit entry per source invocation.
type Recorder interface {
	Add(agent, action, details string)
}

// Source is a single context provider. Lookup returns the text to include in
// the merged context, or an error when the source is unavailable.
type Source interface {
	// Name is the trace actor, e.g. "knowledge_base".
	Name() string
	// Label heads the source's section in the merged context.
	Label() string
	Lookup(ctx context.Context, query string) (string, error)
}

// Service merges the output of zero or more sources. A failing source
// degrades to a labeled placeholder section and never aborts the gather.
type Service struct {
	sources []Source
}

func NewService(sources ...Source) *Service {
	return &Service{sources: sources}
}

// Gather consults every source in order and returns one annotated text block.
// It always returns a non-empty string.
func (s *Service) Gather(ctx context.Context, query string, trace Recorder) string {
	var sections []string

	for _, src := range s.sources {
		trace.Add("orchestrator", "gathering_context", fmt.Sprintf("Consulting %s", src.Name()))

		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		content, err := src.Lookup(lookupCtx, query)
		cancel()

		if err != nil || strings.TrimSpace(content) == "" {
			if err != nil {
				log.Printf("gather: %s lookup failed: %v", src.Name(), err)
			}
			sections = append(sections, fmt.Sprintf("%s: No results available.", src.Label()))
			trace.Add(src.Name(), "lookup_unavailable", fmt.Sprintf("%s returned no usable context", src.Name()))
			continue
		}

		sections = append(sections, fmt.Sprintf("%s:\n%s", src.Label(), content))
		trace.Add(src.Name(), "lookup_complete", fmt.Sprintf("Retrieved %d characters from %s", len(content), src.Name()))
	}

	if len(sections) == 0 {
		trace.Add("orchestrator", "context_ready", "No context sources enabled")
		return NoContext
	}

	merged := strings.Join(sections, "\n\n")
	trace.Add("orchestrator", "context_ready", fmt.Sprintf("Context gathering complete. Total context: %d characters", len(merged)))
	return merged
}
