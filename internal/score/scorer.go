// Package score turns question clusters into ranked content opportunities.
package score

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/publish"
	"github.com/ppiankov/beacon/internal/retrieval"
	"github.com/ppiankov/beacon/internal/util"
	"github.com/ppiankov/beacon/internal/worker"
)

const (
	maxSampleQuestions = 10
	promptQuestions    = 5
	promptDocs         = 3

	heuristicReasoning = "heuristic fallback"
	noKnowledgeNote    = "no knowledge base documents cover this topic, create guide first"
)

// Ranker supplies the knowledge documents for a cluster
type Ranker interface {
	Rank(ctx context.Context, query string, opts retrieval.Options) []model.Evidence
}

// PublishedIndex reports already published content close to a title or angle
type PublishedIndex interface {
	FindSimilar(titleOrAngle string) []publish.Content
}

var systemPrompt = `You are a content strategy advisor for an NYC permit expediting firm.
Score one content opportunity built from a cluster of team questions and the knowledge base documents that answer them.

Scores are integers from 0 to 100:
- demand_score: how much clients need this. 90+ asked 10+ times, 70-89 asked 5-9 times, 50-69 asked 2-4 times, below 50 asked once.
- expertise_score: whether we can write authoritatively. 90+ a comprehensive guide exists, 70-89 some documentation, 50-69 basic knowledge, below 50 no docs.
- relevance_score: how much this affects client projects. 90+ core service, 70-89 common requirement, 50-69 occasional need, below 50 not core.

recommended_format is one of: blog_post (substantial evergreen topic), newsletter_mention (timely update),
comprehensive_guide (we need a new knowledge base document first), skip (already covered or not relevant).

Be honest about expertise gaps. Respond with ONLY a JSON object:
{"relevance_score": 0, "expertise_score": 0, "demand_score": 0, "content_angle": "...", "recommended_format": "...", "reasoning": "..."}`

// Scorer scores clusters with a reasoning provider and falls back to demand-only heuristics.
// Score never fails.
type Scorer struct {
	ranker  Ranker
	tiers   llm.Tiers
	limiter *worker.Limiter
	batches *worker.BatchProcessor
	timeout time.Duration
	topK    int
}

// NewScorer creates a scorer. limiter may be nil; tiers may be empty, in which case every
// cluster gets the heuristic score.
func NewScorer(ranker Ranker, tiers llm.Tiers, cfg model.AnalysisConfig, limiter *worker.Limiter) *Scorer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.ReasoningTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	return &Scorer{
		ranker:  ranker,
		tiers:   tiers,
		limiter: limiter,
		batches: worker.NewBatchProcessor(batchSize, workers),
		timeout: timeout,
		topK:    topK,
	}
}

// Score returns one opportunity per cluster, best first. index may be nil.
func (s *Scorer) Score(ctx context.Context, clusters []model.QuestionCluster, index PublishedIndex) []model.ContentOpportunity {
	if len(clusters) == 0 {
		return []model.ContentOpportunity{}
	}

	results := worker.Process(ctx, s.batches, clusters, func(ctx context.Context, c model.QuestionCluster) (model.ContentOpportunity, error) {
		return s.scoreCluster(ctx, c, index), nil
	})

	opportunities := make([]model.ContentOpportunity, len(results))
	for i, r := range results {
		if r.Error != nil {
			// Never started; the job was cancelled
			opportunities[i] = heuristic(newOpportunity(clusters[i], nil))
			continue
		}
		opportunities[i] = r.Value
	}

	Sort(opportunities)
	return opportunities
}

// Sort orders opportunities by overall score, best first, then by title
func Sort(opportunities []model.ContentOpportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].OverallScore != opportunities[j].OverallScore {
			return opportunities[i].OverallScore > opportunities[j].OverallScore
		}
		return opportunities[i].Title < opportunities[j].Title
	})
}

func (s *Scorer) scoreCluster(ctx context.Context, c model.QuestionCluster, index PublishedIndex) model.ContentOpportunity {
	var evidence []model.Evidence
	if s.ranker != nil {
		evidence = s.ranker.Rank(ctx, c.CentroidText, retrieval.Options{K: s.topK})
	}
	opp := newOpportunity(c, evidence)

	logger := log.With().
		Str("component", "score").
		Str("cluster", util.Truncate(c.Label, 60)).
		Int("frequency", c.TotalFrequency).
		Logger()

	if index != nil {
		if covered := index.FindSimilar(c.Label); len(covered) > 0 {
			logger.Debug().Str("published", covered[0].Title).Msg("already published, skipping")
			return published(opp, covered[0])
		}
	}

	provider := s.tiers.For(llm.TierCapable)
	if provider == nil {
		return heuristic(opp)
	}

	prompt := buildPrompt(c, evidence)
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		a, err := s.assess(ctx, provider, prompt)
		if err == nil {
			result := apply(opp, a, bestAuthority(evidence))
			logger.Debug().
				Int("overall", result.OverallScore).
				Str("format", string(result.RecommendedFormat)).
				Msg("cluster scored")
			return result
		}
		lastErr = err
		if !isSchemaViolation(err) {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("schema violation")
	}

	logger.Warn().
		Str("provider", provider.Name()).
		Bool("rate_limited", llm.IsRateLimited(lastErr)).
		Err(lastErr).
		Msg("reasoning failed, using heuristic score")
	return heuristic(opp)
}

// assess runs one rate-limited, time-bounded provider call
func (s *Scorer) assess(ctx context.Context, provider llm.Provider, prompt string) (Assessment, error) {
	if err := s.limiter.Wait(ctx, provider.Name()); err != nil {
		return Assessment{}, fmt.Errorf("rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   1000,
		Temperature: 0.3,
		JSON:        true,
	})
	if err != nil {
		return Assessment{}, err
	}
	return ParseAssessment(resp.Text)
}

func isSchemaViolation(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

func newOpportunity(c model.QuestionCluster, evidence []model.Evidence) model.ContentOpportunity {
	questions := c.DistinctTexts()
	if len(questions) > maxSampleQuestions {
		questions = questions[:maxSampleQuestions]
	}
	if questions == nil {
		questions = []string{}
	}

	return model.ContentOpportunity{
		Title:         c.Label,
		Cluster:       c,
		Questions:     questions,
		QuestionCount: c.TotalFrequency,
		DemandScore:   DemandFor(c.TotalFrequency),
		KnowledgeDocs: knowledgeDocs(evidence),
	}
}

// apply combines a validated assessment with the observed demand and knowledge.
// Demand always comes from frequency; the provider's demand is advisory.
func apply(opp model.ContentOpportunity, a Assessment, best model.AuthorityTier) model.ContentOpportunity {
	opp.RelevanceScore = a.Relevance
	opp.ContentAngle = a.Angle
	opp.Reasoning = a.Reasoning
	opp.RecommendedFormat = a.Format

	if len(opp.KnowledgeDocs) == 0 {
		opp.ExpertiseScore = 0
		opp.OverallScore = withoutKnowledge(opp.DemandScore)
		opp.RecommendedFormat = model.FormatGuide
		opp.Reasoning = a.Reasoning + " (" + noKnowledgeNote + ")"
	} else {
		opp.ExpertiseScore = min(a.Expertise, ExpertiseCeiling(len(opp.KnowledgeDocs), best))
		opp.OverallScore = Overall(opp.DemandScore, opp.ExpertiseScore, opp.RelevanceScore)
	}

	if opp.RecommendedFormat == model.FormatSkip {
		opp.OverallScore = min(opp.OverallScore, DoNotPursue)
	}
	opp.OverallScore = clamp(opp.OverallScore, 0, 100)
	opp.Priority = model.PriorityFor(opp.OverallScore)
	return opp
}

// heuristic scores on demand alone
func heuristic(opp model.ContentOpportunity) model.ContentOpportunity {
	opp.RelevanceScore = 0
	opp.ExpertiseScore = 0
	opp.OverallScore = withoutKnowledge(opp.DemandScore)
	opp.Reasoning = heuristicReasoning
	if len(opp.KnowledgeDocs) == 0 {
		opp.Reasoning = heuristicReasoning + " (" + noKnowledgeNote + ")"
		opp.RecommendedFormat = model.FormatGuide
		opp.ContentAngle = "Step-by-step guide to " + opp.Title
	} else {
		opp.RecommendedFormat = model.FormatNewsletter
		opp.ContentAngle = "Common questions about " + opp.Title
	}
	opp.Priority = model.PriorityFor(opp.OverallScore)
	return opp
}

// published marks a topic that is already covered
func published(opp model.ContentOpportunity, existing publish.Content) model.ContentOpportunity {
	opp.RecommendedFormat = model.FormatSkip
	opp.OverallScore = min(withoutKnowledge(opp.DemandScore), DoNotPursue)
	opp.ContentAngle = "Already covered"
	opp.Reasoning = fmt.Sprintf("already published as %q", existing.Title)
	if existing.URL != "" {
		opp.Reasoning += " (" + existing.URL + ")"
	}
	opp.Priority = model.PriorityFor(opp.OverallScore)
	return opp
}

func knowledgeDocs(evidence []model.Evidence) []string {
	seen := make(map[string]bool)
	docs := []string{}
	for _, e := range evidence {
		if e.SourceFile == "" || seen[e.SourceFile] {
			continue
		}
		seen[e.SourceFile] = true
		docs = append(docs, e.SourceFile)
	}
	return docs
}

func bestAuthority(evidence []model.Evidence) model.AuthorityTier {
	best := model.AuthorityTier(0)
	for _, e := range evidence {
		if e.Authority > best {
			best = e.Authority
		}
	}
	return best
}

func buildPrompt(c model.QuestionCluster, evidence []model.Evidence) string {
	counts := make(map[string]int)
	for _, m := range c.Members {
		counts[m.Text]++
	}
	texts := c.DistinctTexts()
	sort.SliceStable(texts, func(i, j int) bool {
		return counts[texts[i]] > counts[texts[j]]
	})
	if len(texts) > promptQuestions {
		texts = texts[:promptQuestions]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", c.Label)
	fmt.Fprintf(&b, "Team questions (%d total):\n", c.TotalFrequency)
	for _, t := range texts {
		fmt.Fprintf(&b, "- %q (asked %dx)\n", t, counts[t])
	}

	b.WriteString("\n")
	if len(evidence) == 0 {
		b.WriteString("No relevant knowledge base documents found.\n")
	} else {
		b.WriteString("Available knowledge base:\n")
		for i, e := range evidence {
			if i == promptDocs {
				break
			}
			fmt.Fprintf(&b, "%d. %s (%s authority, %.0f%% match)\n", i+1, e.SourceFile, e.Authority, e.Similarity*100)
			fmt.Fprintf(&b, "   Content: %s\n", util.Truncate(e.Text, 200))
		}
	}

	b.WriteString("\nScore this content opportunity. Return ONLY valid JSON.")
	return b.String()
}
