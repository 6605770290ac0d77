package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/beacon/internal/model"
)

func TestFormatContext_CorrectionsFirst(t *testing.T) {
	evidence := []model.Evidence{
		{ChunkID: "c", SourceFile: "corrections/1", Text: "TCO renewals every 90 days", Authority: 10, Similarity: 1, CorrectionID: "1"},
		{ChunkID: "d", SourceFile: "bb-2019.pdf", Text: "Bulletin text", Authority: 8, Similarity: 0.91},
	}

	out := FormatContext(evidence)

	assert.True(t, strings.HasPrefix(out, "TEAM CORRECTIONS"))
	assert.Less(t, strings.Index(out, "TCO renewals"), strings.Index(out, "bb-2019.pdf"))
	assert.Contains(t, out, "VERY HIGH confidence")
	assert.Contains(t, out, "authority 8, bulletin")
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Contains(t, FormatContext(nil), "general knowledge")
}

func TestFormatCitations(t *testing.T) {
	evidence := []model.Evidence{
		{SourceFile: "corrections/1", Similarity: 1, CorrectionID: "1"},
		{SourceFile: "a.pdf", Similarity: 0.92},
		{SourceFile: "a.pdf", Similarity: 0.90},
		{SourceFile: "b.pdf", Similarity: 0.86},
		{SourceFile: "c.pdf", Similarity: 0.70},
	}
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, FormatCitations(evidence))
}
