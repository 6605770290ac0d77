package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/beacon/internal/cluster"
	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/publish"
	"github.com/ppiankov/beacon/internal/retrieval"
)

const highScores = `{"relevance_score": 95, "expertise_score": 95, "demand_score": 90,
 "content_angle": "What changed in the Alt-2 filing checklist", "recommended_format": "blog_post",
 "reasoning": "Asked constantly and we have a full guide"}`

type fakeProvider struct {
	mu        sync.Mutex
	responses []string // Served in order; the last one repeats
	err       error
	block     bool
	delay     time.Duration
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	n := f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxFlight.Load()
		if cur <= prev || f.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := int(n) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return &llm.Response{Text: f.responses[i]}, nil
}

// fakeRanker returns evidence for queries containing a key
type fakeRanker map[string][]model.Evidence

func (r fakeRanker) Rank(ctx context.Context, query string, opts retrieval.Options) []model.Evidence {
	for key, evidence := range r {
		if strings.Contains(strings.ToLower(query), key) {
			return evidence
		}
	}
	return nil
}

func alt2Guide() []model.Evidence {
	return []model.Evidence{{
		ChunkID:    "alt2-1",
		SourceFile: "alt2_comprehensive_guide.md",
		Text:       "Alt-2 filings require PW1, plans and a schedule B...",
		Authority:  model.TierBulletin,
		Similarity: 0.91,
	}}
}

func repeated(text string, n int, startID int64) []model.QuestionEvent {
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	events := make([]model.QuestionEvent, n)
	for i := range events {
		id := startID + int64(i)
		events[i] = model.QuestionEvent{ID: id, Text: text, Timestamp: base.Add(time.Duration(id) * time.Minute)}
	}
	return events
}

func clustersOf(events ...[]model.QuestionEvent) []model.QuestionCluster {
	var all []model.QuestionEvent
	for _, e := range events {
		all = append(all, e...)
	}
	return cluster.Cluster(all, cluster.DefaultThreshold)
}

func TestScore_WellDocumentedHighDemand(t *testing.T) {
	s := NewScorer(fakeRanker{"alt-2": alt2Guide()}, llm.Tiers{Capable: &fakeProvider{responses: []string{highScores}}}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Alt-2 filing requirements", 12, 1)), nil)

	require.Len(t, got, 1)
	opp := got[0]
	assert.Equal(t, 12, opp.QuestionCount)
	assert.GreaterOrEqual(t, opp.OverallScore, 85)
	assert.Equal(t, model.FormatBlogPost, opp.RecommendedFormat)
	assert.Equal(t, model.PriorityHigh, opp.Priority)
	assert.Equal(t, []string{"alt2_comprehensive_guide.md"}, opp.KnowledgeDocs)
	assert.Equal(t, []string{"Alt-2 filing requirements"}, opp.Questions)
	assert.Equal(t, DemandFor(12), opp.DemandScore)
}

func TestScore_NoKnowledgeMeansGuideFirst(t *testing.T) {
	s := NewScorer(fakeRanker{}, llm.Tiers{Capable: &fakeProvider{responses: []string{highScores}}}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Landmarks preservation rules", 8, 1)), nil)

	require.Len(t, got, 1)
	opp := got[0]
	assert.Equal(t, 0, opp.ExpertiseScore)
	assert.InDelta(t, 40, opp.OverallScore, 5)
	assert.Equal(t, model.FormatGuide, opp.RecommendedFormat)
	assert.Contains(t, opp.Reasoning, "create guide first")
	assert.Empty(t, opp.KnowledgeDocs)
}

func TestScore_PublishedNearDuplicateSkipped(t *testing.T) {
	provider := &fakeProvider{responses: []string{highScores}}
	ranker := fakeRanker{"dob": {{ChunkID: "dob-1", SourceFile: "dob_permit_guide.md", Authority: model.TierProcedure, Similarity: 0.88}}}
	index := publish.NewIndex([]publish.Content{{Title: "The DOB permit process explained", URL: "https://example.com/dob-permits"}}, 0)

	s := NewScorer(ranker, llm.Tiers{Capable: provider}, model.AnalysisConfig{}, nil)
	got := s.Score(context.Background(), clustersOf(repeated("DOB permit process", 6, 1)), index)

	require.Len(t, got, 1)
	assert.Equal(t, model.FormatSkip, got[0].RecommendedFormat)
	assert.LessOrEqual(t, got[0].OverallScore, DoNotPursue)
	assert.Contains(t, got[0].Reasoning, "already published")
	assert.Zero(t, provider.calls.Load(), "covered topics never reach the provider")
}

func TestScore_VariantsBecomeOneOpportunity(t *testing.T) {
	s := NewScorer(fakeRanker{"alt-2": alt2Guide()}, llm.Tiers{Capable: &fakeProvider{responses: []string{highScores}}}, model.AnalysisConfig{}, nil)

	clusters := clustersOf(
		repeated("Alt-2 timeline", 4, 1),
		repeated("Alt-2 fees", 3, 100),
		repeated("Alt-2 requirements", 5, 200),
	)
	got := s.Score(context.Background(), clusters, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].QuestionCount)
	assert.ElementsMatch(t, []string{"Alt-2 timeline", "Alt-2 fees", "Alt-2 requirements"}, got[0].Questions)
}

func TestScore_EmptyInput(t *testing.T) {
	s := NewScorer(nil, llm.Tiers{}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), nil, nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScore_SchemaViolationRetriedOnce(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevance_score": "high"}`, highScores}}
	s := NewScorer(fakeRanker{"alt-2": alt2Guide()}, llm.Tiers{Capable: provider}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Alt-2 filing requirements", 12, 1)), nil)

	require.Len(t, got, 1)
	assert.EqualValues(t, 2, provider.calls.Load())
	assert.Equal(t, model.FormatBlogPost, got[0].RecommendedFormat)
}

func TestScore_HeuristicAfterRepeatedViolation(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevance_score": 250, "recommended_format": "tweet"}`}}
	s := NewScorer(fakeRanker{"alt-2": alt2Guide()}, llm.Tiers{Capable: provider}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Alt-2 filing requirements", 12, 1)), nil)

	require.Len(t, got, 1)
	assert.EqualValues(t, 2, provider.calls.Load())
	assert.Equal(t, heuristicReasoning, got[0].Reasoning)
	assert.Equal(t, DemandFor(12), got[0].DemandScore)
	assert.Equal(t, (DemandFor(12)+1)/2, got[0].OverallScore)
}

func TestScore_ProviderErrorsFallBackWithoutRetry(t *testing.T) {
	provider := &fakeProvider{err: errors.New("529 overloaded")}
	s := NewScorer(fakeRanker{}, llm.Tiers{Capable: provider}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Landmarks preservation rules", 8, 1)), nil)

	require.Len(t, got, 1)
	assert.EqualValues(t, 1, provider.calls.Load())
	assert.Equal(t, heuristicReasoning+" ("+noKnowledgeNote+")", got[0].Reasoning)
	assert.Equal(t, model.FormatGuide, got[0].RecommendedFormat)
}

func TestScore_ReasoningTimeout(t *testing.T) {
	provider := &fakeProvider{block: true}
	s := NewScorer(fakeRanker{}, llm.Tiers{Fast: provider}, model.AnalysisConfig{ReasoningTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	got := s.Score(context.Background(), clustersOf(repeated("Landmarks preservation rules", 3, 1)), nil)

	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].Reasoning, heuristicReasoning))
	assert.Less(t, time.Since(start), time.Second)
}

func TestScore_NoProviderUsesHeuristic(t *testing.T) {
	s := NewScorer(fakeRanker{"alt-2": alt2Guide()}, llm.Tiers{}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Alt-2 filing requirements", 2, 1)), nil)

	require.Len(t, got, 1)
	assert.Equal(t, heuristicReasoning, got[0].Reasoning)
	assert.Equal(t, model.FormatNewsletter, got[0].RecommendedFormat)
}

func TestScore_HeuristicWithoutKnowledgeSaysCreateGuide(t *testing.T) {
	s := NewScorer(fakeRanker{}, llm.Tiers{}, model.AnalysisConfig{}, nil)

	got := s.Score(context.Background(), clustersOf(repeated("Landmarks preservation rules", 8, 1)), nil)

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Reasoning, heuristicReasoning)
	assert.Contains(t, got[0].Reasoning, "create guide first")
	assert.Equal(t, model.FormatGuide, got[0].RecommendedFormat)
	assert.Zero(t, got[0].ExpertiseScore)
}

func TestScore_BoundedConcurrency(t *testing.T) {
	provider := &fakeProvider{responses: []string{highScores}, delay: 10 * time.Millisecond}
	cfg := model.AnalysisConfig{BatchSize: 3, Workers: 2}
	s := NewScorer(fakeRanker{}, llm.Tiers{Capable: provider}, cfg, nil)

	var groups [][]model.QuestionEvent
	for i := 0; i < 10; i++ {
		groups = append(groups, repeated(fmt.Sprintf("topic%d", i), 2, int64(i*10)))
	}
	clusters := clustersOf(groups...)
	require.Len(t, clusters, 10)

	got := s.Score(context.Background(), clusters, nil)

	assert.Len(t, got, 10)
	assert.EqualValues(t, 10, provider.calls.Load())
	assert.LessOrEqual(t, provider.maxFlight.Load(), int32(2))
}

func TestScore_SortedByOverallThenTitle(t *testing.T) {
	s := NewScorer(nil, llm.Tiers{}, model.AnalysisConfig{}, nil)

	clusters := clustersOf(
		repeated("zoning variance hearing", 2, 1),
		repeated("certificate occupancy signoff", 2, 10),
		repeated("sprinkler standpipe inspection", 7, 20),
	)
	got := s.Score(context.Background(), clusters, nil)

	require.Len(t, got, 3)
	assert.Equal(t, "sprinkler standpipe inspection", got[0].Title)
	assert.Equal(t, "certificate occupancy signoff", got[1].Title)
	assert.Equal(t, "zoning variance hearing", got[2].Title)
}

func TestScore_CancelledContextStillReturnsEveryCluster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScorer(fakeRanker{}, llm.Tiers{Capable: &fakeProvider{responses: []string{highScores}}}, model.AnalysisConfig{BatchSize: 1}, nil)
	got := s.Score(ctx, clustersOf(repeated("zoning variance hearing", 2, 1), repeated("sprinkler standpipe inspection", 3, 10)), nil)

	require.Len(t, got, 2)
	for _, opp := range got {
		assert.True(t, strings.HasPrefix(opp.Reasoning, heuristicReasoning))
	}
}

func TestParseAssessment(t *testing.T) {
	a, err := ParseAssessment("```json\n" + highScores + "\n```")
	require.NoError(t, err)
	assert.Equal(t, Assessment{
		Relevance: 95, Expertise: 95, Demand: 90,
		Angle:     "What changed in the Alt-2 filing checklist",
		Format:    model.FormatBlogPost,
		Reasoning: "Asked constantly and we have a full guide",
	}, a)

	a, err = ParseAssessment(`{"relevance_score": 40, "expertise_score": 10, "demand_score": 70, "content_angle": "x", "recommended_format": "comprehensive_guide", "reasoning": "y"}`)
	require.NoError(t, err)
	assert.Equal(t, model.FormatGuide, a.Format)
}

func TestParseAssessment_Violations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"not json", "I would write a blog post", "invalid JSON object"},
		{"missing score", `{"relevance_score": 50, "demand_score": 50, "content_angle": "a", "recommended_format": "skip", "reasoning": "r"}`, "expertise_score missing"},
		{"out of range", `{"relevance_score": 150, "expertise_score": 50, "demand_score": 50, "content_angle": "a", "recommended_format": "skip", "reasoning": "r"}`, "relevance_score 150 outside 0-100"},
		{"bad format", `{"relevance_score": 50, "expertise_score": 50, "demand_score": 50, "content_angle": "a", "recommended_format": "podcast", "reasoning": "r"}`, "recommended_format"},
		{"empty angle", `{"relevance_score": 50, "expertise_score": 50, "demand_score": 50, "content_angle": " ", "recommended_format": "skip", "reasoning": "r"}`, "content_angle empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssessment(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDemandFor(t *testing.T) {
	tests := []struct {
		frequency int
		want      int
	}{
		{0, 0}, {1, 30}, {2, 50}, {4, 64}, {5, 70}, {9, 86}, {10, 90}, {12, 92}, {40, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DemandFor(tt.frequency), "frequency %d", tt.frequency)
	}
}

func TestExpertiseCeiling(t *testing.T) {
	assert.Equal(t, 0, ExpertiseCeiling(0, model.TierCode))
	assert.Equal(t, 92, ExpertiseCeiling(1, model.TierBulletin))
	assert.Equal(t, 72, ExpertiseCeiling(1, model.TierHistorical))
	assert.Equal(t, 100, ExpertiseCeiling(3, model.TierCode))
}

func TestApply_SkipIsCapped(t *testing.T) {
	opp := model.ContentOpportunity{DemandScore: 100, KnowledgeDocs: []string{"a.md"}}
	got := apply(opp, Assessment{Relevance: 100, Expertise: 100, Format: model.FormatSkip, Angle: "a", Reasoning: "covered"}, model.TierCode)

	assert.Equal(t, DoNotPursue, got.OverallScore)
	assert.Equal(t, model.PriorityLow, got.Priority)
}
