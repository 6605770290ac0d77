package retrieval

import (
	"fmt"
	"strings"

	"github.com/ppiankov/beacon/internal/model"
)

// citationThreshold is the minimum similarity for a source to be cited
const citationThreshold = 0.85

// FormatContext renders evidence as prompt context: team corrections first, then documents
func FormatContext(evidence []model.Evidence) string {
	if model.LowConfidence(evidence) {
		return "No matching documents found. Answer from general knowledge and say so."
	}

	var corrections, documents []model.Evidence
	for _, e := range evidence {
		if e.Corrected() {
			corrections = append(corrections, e)
		} else {
			documents = append(documents, e)
		}
	}

	var b strings.Builder
	if len(corrections) > 0 {
		b.WriteString("TEAM CORRECTIONS (verified, override documents):\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
		b.WriteString("\n")
	}

	for i, d := range documents {
		fmt.Fprintf(&b, "[%d] %s (authority %d, %s, %s confidence)\n%s\n\n",
			i+1, d.SourceFile, int(d.Authority), d.Authority, d.ConfidenceLabel(), d.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatCitations lists high-confidence document sources once each, in rank order
func FormatCitations(evidence []model.Evidence) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, e := range evidence {
		if e.Corrected() || e.Similarity < citationThreshold || seen[e.SourceFile] {
			continue
		}
		seen[e.SourceFile] = true
		sources = append(sources, e.SourceFile)
	}
	return sources
}
