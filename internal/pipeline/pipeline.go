// Package pipeline wires storage, retrieval, reasoning and analysis into one process-scoped graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppiankov/beacon/internal/analysis"
	"github.com/ppiankov/beacon/internal/cache"
	"github.com/ppiankov/beacon/internal/classify"
	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/logging"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/overlay"
	"github.com/ppiankov/beacon/internal/publish"
	"github.com/ppiankov/beacon/internal/retrieval"
	"github.com/ppiankov/beacon/internal/score"
	"github.com/ppiankov/beacon/internal/server"
	"github.com/ppiankov/beacon/internal/storage"
	"github.com/ppiankov/beacon/internal/worker"
)

// Pipeline owns every long-lived component. Build it once per process and Close it on exit.
type Pipeline struct {
	DB          *sqlx.DB
	Questions   *storage.QuestionLog
	Corrections *overlay.Store
	Vectors     *retrieval.ChromemStore // nil when no embedder is configured
	Ranker      *retrieval.Ranker
	Tiers       llm.Tiers
	Classifier  *classify.Classifier
	Published   *publish.Index
	Responses   *cache.ResponseCache
	Scorer      *score.Scorer
	Analysis    *analysis.Service

	config *model.Config
}

// Options override parts of the wiring, mostly for tests
type Options struct {
	// Embedder replaces the OpenAI embedder
	Embedder retrieval.Embedder

	// Tiers replaces the configured reasoning providers
	Tiers *llm.Tiers
}

// New builds the pipeline from configuration
func New(ctx context.Context, cfg *model.Config, opts Options) (*Pipeline, error) {
	logger := logging.Component("pipeline")

	db, err := storage.Open(ctx, cfg.Storage.Database)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{DB: db, Questions: storage.NewQuestionLog(db), config: cfg}

	p.Corrections, err = overlay.NewStore(ctx, cfg.Overlay, storage.NewCorrectionJournal(db))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load corrections: %w", err)
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = newEmbedder(cfg.VectorStore)
		if err != nil {
			logger.Warn().Err(err).Msg("vector search disabled, answers will rely on corrections only")
		}
	}
	if embedder != nil {
		p.Vectors, err = retrieval.NewChromemStore(cfg.VectorStore, embedder)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	var searcher retrieval.VectorSearcher
	if p.Vectors != nil {
		searcher = p.Vectors
	}
	p.Ranker = retrieval.NewRanker(searcher, p.Corrections, cfg.Retrieval)

	if opts.Tiers != nil {
		p.Tiers = *opts.Tiers
	} else {
		p.Tiers, err = llm.NewTiers(cfg.LLM)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if !p.Tiers.Enabled() {
		logger.Info().Msg("no reasoning provider configured, using keyword classification and heuristic scores")
	}

	p.Responses = cache.NewResponseCache(cache.NewFromConfig(cfg.Cache))
	p.Classifier = p.ClassifierFor(llm.TierFast)

	p.Published, err = publish.Load(cfg.Publish.Catalog, cfg.Publish.MatchThreshold)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	limiter := worker.NewLimiter(cfg.Analysis.RequestsPerSecond, cfg.Analysis.Burst)
	p.Scorer = score.NewScorer(p.Ranker, p.Tiers, cfg.Analysis, limiter)
	p.Analysis = analysis.NewService(p.Questions, p.Classifier, p.Scorer, p.Published, p.Responses, cfg.Analysis, cfg.Cache.AnalysisTTL)

	logger.Debug().
		Bool("vectors", p.Vectors != nil).
		Bool("reasoning", p.Tiers.Enabled()).
		Int("corrections", len(p.Corrections.All())).
		Int("published", p.Published.Len()).
		Msg("pipeline ready")
	return p, nil
}

// ClassifierFor builds a classifier backed by the provider of tier, sharing the response cache
func (p *Pipeline) ClassifierFor(tier llm.Tier) *classify.Classifier {
	return classify.NewClassifier(p.Tiers.For(tier), p.config.Classifier).
		WithResponseCache(p.Responses, p.config.Cache.MemoryTTL)
}

// Server builds the HTTP boundary over the pipeline
func (p *Pipeline) Server() *server.Server {
	return server.New(server.Deps{
		Analyzer:   p.Analysis,
		Ranker:     p.Ranker,
		Classifier: p.Classifier,
		Questions:  p.Questions,
		Providers:  p.providerStatus(),
	}, p.config.Server)
}

// providerStatus exposes the configured reasoning tiers to the health check
func (p *Pipeline) providerStatus() map[string]server.ProviderChecker {
	providers := make(map[string]server.ProviderChecker)
	for _, tier := range []llm.Tier{llm.TierFast, llm.TierCapable} {
		if provider := p.Tiers.For(tier); provider != nil {
			providers[string(tier)] = provider
		}
	}
	return providers
}

// Close releases the database
func (p *Pipeline) Close() error {
	return p.DB.Close()
}

// ErrNoVectorStore is returned by operations that need document search when none is configured
var ErrNoVectorStore = errors.New("vector store not configured (set OPENAI_API_KEY for embeddings)")

func newEmbedder(cfg model.VectorStoreConfig) (retrieval.Embedder, error) {
	embedder, err := retrieval.NewOpenAIEmbedder(retrieval.EmbedderConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   cfg.EmbeddingModel,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
