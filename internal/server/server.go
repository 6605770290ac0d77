// Package server exposes the ranking, classification and content-opportunity endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/analysis"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/retrieval"
)

// Analyzer produces content-opportunity reports
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*model.AnalysisReport, error)
}

// Ranker builds evidence sets for live queries
type Ranker interface {
	Rank(ctx context.Context, query string, opts retrieval.Options) []model.Evidence
}

// Classifier assigns a topic to a question
type Classifier interface {
	Classify(ctx context.Context, text string) model.Classification
}

// QuestionLog records asked questions
type QuestionLog interface {
	Append(ctx context.Context, e model.QuestionEvent) (model.QuestionEvent, error)
}

// ProviderChecker reports whether a reasoning provider is reachable
type ProviderChecker interface {
	Name() string
	IsAvailable(ctx context.Context) bool
}

// Deps are the collaborators behind the endpoints. A nil dependency disables its endpoints.
type Deps struct {
	Analyzer   Analyzer
	Ranker     Ranker
	Classifier Classifier
	Questions  QuestionLog

	// Providers are checked by GET /healthz, keyed by reasoning tier
	Providers map[string]ProviderChecker
}

// Server is the HTTP boundary
type Server struct {
	deps    Deps
	cfg     model.ServerConfig
	handler http.Handler
}

// New creates a server and registers its routes
func New(deps Deps, cfg model.ServerConfig) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	s := &Server{deps: deps, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if deps.Analyzer != nil {
		mux.HandleFunc("GET /api/content/opportunities", s.handleOpportunities)
		mux.HandleFunc("POST /api/content/opportunities", s.handleOpportunities)
	}
	if deps.Ranker != nil {
		mux.HandleFunc("GET /api/rank", s.handleRank)
	}
	if deps.Classifier != nil {
		mux.HandleFunc("POST /api/classify", s.handleClassify)
		if deps.Questions != nil {
			mux.HandleFunc("POST /api/questions", s.handleRecordQuestion)
		}
	}

	s.handler = s.withTimeout(s.withLogging(mux))
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Str("addr", listener.Addr().String()).Msg("listening")
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Str("component", "server").Msg("stopped")
	return nil
}

// withTimeout bounds every request
func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("component", "server").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
