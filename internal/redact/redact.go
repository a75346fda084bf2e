// Package redact masks personally identifiable information in grievance text
// before it is sent to external generation roles, and restores it afterwards.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry records a single substitution made during Encode.
type Entry struct {
	Placeholder string `json:"placeholder"`
	Original    string `json:"original"`
	Category    string `json:"category"`
}

// Map is the ordered list of substitutions for one Encode call. Order matters:
// Decode applies entries in the order they were recorded.
type Map []Entry

type category struct {
	name    string
	pattern *regexp.Regexp
}

// Categories are applied most-specific-first. Email runs before mobile so a
// digit-heavy local part is never split by the mobile pattern, and the
// placeholder alphabet itself cannot match any pattern below.
var categories = []category{
	{"AADHAAR", regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
	{"PAN", regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)},
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"MOBILE", regexp.MustCompile(`\b[6-9]\d{9}\b`)},
	{"NAME", regexp.MustCompile(`(?:Mr\.|Mrs\.|Ms\.|Dr\.)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)},
	{"ADDRESS", regexp.MustCompile(`\b\d+[,\s]+[A-Za-z\s]+(?:Street|Road|Lane|Avenue|Nagar|Colony)\b`)},
}

// Encode replaces every recognizable sensitive span in text with a typed
// placeholder of the form [CATEGORY_n] and returns the redacted text together
// with the substitution map. Text with no matches is returned unchanged with
// an empty map.
func Encode(text string) (string, Map) {
	if strings.TrimSpace(text) == "" {
		return text, Map{}
	}

	redacted := text
	mapping := Map{}

	for _, cat := range categories {
		matches := cat.pattern.FindAllString(redacted, -1)
		if matches == nil {
			continue
		}
		counter := 0
		seen := map[string]struct{}{}
		for _, original := range matches {
			if _, dup := seen[original]; dup {
				continue
			}
			seen[original] = struct{}{}
			counter++
			placeholder := fmt.Sprintf("[%s_%d]", cat.name, counter)
			mapping = append(mapping, Entry{
				Placeholder: placeholder,
				Original:    original,
				Category:    cat.name,
			})
			redacted = strings.ReplaceAll(redacted, original, placeholder)
		}
	}

	return redacted, mapping
}

// Decode restores the original spans recorded in mapping. Placeholders absent
// from text are ignored; placeholders in text with no mapping entry are left
// untouched.
func Decode(text string, mapping Map) string {
	restored := text
	for _, entry := range mapping {
		restored = strings.ReplaceAll(restored, entry.Placeholder, entry.Original)
	}
	return restored
}

// HasPlaceholders reports whether text still contains any placeholder token
// produced by Encode.
func HasPlaceholders(text string) bool {
	return placeholderPattern.MatchString(text)
}

var placeholderPattern = regexp.MustCompile(`\[(?:AADHAAR|PAN|EMAIL|MOBILE|NAME|ADDRESS)_\d+\]`)
