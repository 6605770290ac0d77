package cluster

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/beacon/internal/model"
)

func events(counts map[string]int) []model.QuestionEvent {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []model.QuestionEvent
	id := int64(1)
	// Stable construction order so IDs are reproducible
	for _, text := range sortedKeys(counts) {
		for i := 0; i < counts[text]; i++ {
			out = append(out, model.QuestionEvent{
				ID:        id,
				Timestamp: base.Add(time.Duration(id) * time.Minute),
				Text:      text,
			})
			id++
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func TestCluster_MergesVariants(t *testing.T) {
	in := events(map[string]int{
		"What is the Alt-2 timeline?":                5,
		"What are the Alt-2 fees?":                   4,
		"What are Alt-2 requirements?":               3,
		"What are the noise hours for construction?": 2,
	})

	got := Cluster(in, 0.3)

	require.Len(t, got, 2)
	assert.Equal(t, 12, got[0].TotalFrequency)
	assert.Len(t, got[0].Members, 12)
	assert.Equal(t, "What is the Alt-2 timeline?", got[0].CentroidText)
	assert.Equal(t, got[0].CentroidText, got[0].Label)

	assert.Equal(t, 2, got[1].TotalFrequency)
	assert.Equal(t, "What are the noise hours for construction?", got[1].CentroidText)
}

func TestCluster_NearDuplicateSpellingsGroup(t *testing.T) {
	in := []model.QuestionEvent{
		{ID: 1, Text: "alt-2 timeline?"},
		{ID: 2, Text: "Alt-2 timeline"},
		{ID: 3, Text: "Alt-2 timeline"},
	}
	got := Cluster(in, 0.3)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].TotalFrequency)
	assert.Equal(t, "Alt-2 timeline", got[0].CentroidText, "most frequent spelling wins")
}

func TestCluster_CentroidTieBreaksLexically(t *testing.T) {
	in := events(map[string]int{
		"sidewalk shed permit renewal": 2,
		"sidewalk shed permit cost":    2,
	})
	got := Cluster(in, 0.3)
	require.Len(t, got, 1)
	assert.Equal(t, "sidewalk shed permit cost", got[0].CentroidText)
}

func TestCluster_ThresholdSeparates(t *testing.T) {
	in := events(map[string]int{
		"What is the Alt-2 timeline?": 1,
		"What are the Alt-2 fees?":    1,
	})

	assert.Len(t, Cluster(in, 0.3), 1)
	assert.Len(t, Cluster(in, 0.5), 2)
}

func TestCluster_PermutationInvariant(t *testing.T) {
	in := events(map[string]int{
		"What is the Alt-2 timeline?":                5,
		"What are the Alt-2 fees?":                   4,
		"What are Alt-2 requirements?":               3,
		"What are the noise hours for construction?": 2,
		"Weekend noise hours?":                       2,
		"LPC approval for storefront":                1,
		"How long does LPC approval take?":           1,
		"hello":                                      1,
	})
	want := Cluster(in, 0.3)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]model.QuestionEvent(nil), in...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Cluster(shuffled, 0.3))
	}
}

func TestCluster_MembersOrderedByTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := []model.QuestionEvent{
		{ID: 3, Timestamp: base.Add(3 * time.Hour), Text: "Alt-2 fees"},
		{ID: 1, Timestamp: base.Add(1 * time.Hour), Text: "Alt-2 timeline"},
		{ID: 2, Timestamp: base.Add(2 * time.Hour), Text: "Alt-2 timeline"},
	}
	got := Cluster(in, 0.3)
	require.Len(t, got, 1)
	var ids []int64
	for _, m := range got[0].Members {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCluster_EmptyAndBlank(t *testing.T) {
	assert.Empty(t, Cluster(nil, 0.3))
	assert.Empty(t, Cluster([]model.QuestionEvent{{Text: "   "}, {Text: "?!"}}, 0.3))
}
