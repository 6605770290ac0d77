// Package analysis runs the content-opportunity job over a window of the question log.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/cache"
	"github.com/ppiankov/beacon/internal/cluster"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/score"
	"github.com/ppiankov/beacon/internal/worker"
)

// QuestionLog is the slice of the question log the job reads and backfills
type QuestionLog interface {
	Window(ctx context.Context, since time.Time) ([]model.QuestionEvent, error)
	BackfillTopic(ctx context.Context, id int64, topic string, confidence float64) error
}

// Classifier assigns topics to unclassified questions
type Classifier interface {
	Classify(ctx context.Context, text string) model.Classification
}

// Scorer turns clusters into opportunities
type Scorer interface {
	Score(ctx context.Context, clusters []model.QuestionCluster, index score.PublishedIndex) []model.ContentOpportunity
}

// Request selects the window and the minimum cluster size
type Request struct {
	WindowDays   int `json:"window"`
	MinFrequency int `json:"minFrequency"`
}

// Service runs analyses. Overlapping requests for the same parameters share one run,
// and finished reports are served from the cache until they expire.
type Service struct {
	questions  QuestionLog
	classifier Classifier
	scorer     Scorer
	published  score.PublishedIndex
	cache      *cache.ResponseCache
	cfg        model.AnalysisConfig
	ttl        time.Duration
	now        func() time.Time
}

// NewService wires the job. classifier, published and responses may be nil.
func NewService(questions QuestionLog, classifier Classifier, scorer Scorer, published score.PublishedIndex, responses *cache.ResponseCache, cfg model.AnalysisConfig, ttl time.Duration) *Service {
	if responses == nil {
		responses = cache.NewResponseCache(nil)
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		questions:  questions,
		classifier: classifier,
		scorer:     scorer,
		published:  published,
		cache:      responses,
		cfg:        cfg,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Normalize fills defaults for unset request fields
func (s *Service) Normalize(req Request) Request {
	if req.WindowDays <= 0 {
		req.WindowDays = s.cfg.WindowDays
	}
	if req.WindowDays <= 0 {
		req.WindowDays = 30
	}
	if req.MinFrequency <= 0 {
		req.MinFrequency = s.cfg.MinFrequency
	}
	if req.MinFrequency <= 0 {
		req.MinFrequency = 1
	}
	return req
}

// Fingerprint is the cache key of a normalized request
func Fingerprint(req Request) string {
	return cache.Fingerprint("content-opportunities",
		"window="+strconv.Itoa(req.WindowDays),
		"min_frequency="+strconv.Itoa(req.MinFrequency))
}

// Analyze returns the report for req. If ctx ends first the run keeps going and
// its report is cached for the next caller.
func (s *Service) Analyze(ctx context.Context, req Request) (*model.AnalysisReport, error) {
	req = s.Normalize(req)
	report, err := cache.CoalesceJSON(ctx, s.cache, Fingerprint(req), s.ttl, func(ctx context.Context) (*model.AnalysisReport, error) {
		return s.run(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) run(ctx context.Context, req Request) (*model.AnalysisReport, error) {
	start := s.now()
	since := start.AddDate(0, 0, -req.WindowDays)

	events, err := s.questions.Window(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("read question log: %w", err)
	}
	questions := filterQuestions(events)

	if s.cfg.BackfillTopics && s.classifier != nil {
		s.backfill(ctx, questions)
	}

	clusters := cluster.Cluster(questions, s.cfg.SimilarityThreshold)
	frequent := clusters[:0]
	for _, c := range clusters {
		if c.TotalFrequency >= req.MinFrequency {
			frequent = append(frequent, c)
		}
	}

	opportunities := []model.ContentOpportunity{}
	for _, chunk := range worker.Chunk(frequent, s.cfg.MaxClusters) {
		opportunities = append(opportunities, s.scorer.Score(ctx, chunk, s.published)...)
	}
	score.Sort(opportunities)

	elapsed := s.now().Sub(start)
	log.Info().
		Str("component", "analysis").
		Int("window_days", req.WindowDays).
		Int("questions", len(questions)).
		Int("clusters", len(frequent)).
		Int("opportunities", len(opportunities)).
		Dur("elapsed", elapsed).
		Msg("analysis complete")

	return &model.AnalysisReport{
		Opportunities:       opportunities,
		AnalysisTimeSeconds: math.Round(elapsed.Seconds()*100) / 100,
		QuestionsAnalyzed:   len(questions),
		OpportunitiesFound:  len(opportunities),
	}, nil
}

// backfill classifies questions that have no topic yet and records the result in the log
func (s *Service) backfill(ctx context.Context, questions []model.QuestionEvent) {
	var pending []int
	for i, q := range questions {
		if q.Topic == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	batches := worker.NewBatchProcessor(s.cfg.BatchSize, s.cfg.Workers)
	results := worker.Process(ctx, batches, pending, func(ctx context.Context, i int) (model.Classification, error) {
		c := s.classifier.Classify(ctx, questions[i].Text)
		return c, s.questions.BackfillTopic(ctx, questions[i].ID, c.Topic, c.Confidence)
	})

	failed := 0
	for n, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		i := pending[n]
		questions[i].Topic = r.Value.Topic
		questions[i].Confidence = r.Value.Confidence
	}
	if failed > 0 {
		log.Warn().
			Str("component", "analysis").
			Int("failed", failed).
			Int("total", len(pending)).
			Msg("topic backfill incomplete")
	}
}
