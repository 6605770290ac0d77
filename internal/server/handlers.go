package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/analysis"
	"github.com/ppiankov/beacon/internal/classify"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/retrieval"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// RankResponse is the body of GET /api/rank
type RankResponse struct {
	Query         string           `json:"query"`
	Evidence      []model.Evidence `json:"evidence"`
	LowConfidence bool             `json:"low_confidence"`
	Citations     []string         `json:"citations"`
	Context       string           `json:"context"`
}

// ClassifyRequest is the body of POST /api/classify
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse carries the topic and the reasoning tier the question should use
type ClassifyResponse struct {
	model.Classification
	Tier        string `json:"tier"`
	RouteReason string `json:"route_reason"`
}

// QuestionRequest is the body of POST /api/questions
type QuestionRequest struct {
	UserID     string  `json:"user_id"`
	Text       string  `json:"text"`
	Answered   bool    `json:"answered"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// providerCheckTimeout bounds the provider checks of one health request
const providerCheckTimeout = 5 * time.Second

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string                    `json:"status"`
	Providers map[string]ProviderHealth `json:"providers,omitempty"`
}

// ProviderHealth is the reachability of the provider behind one tier
type ProviderHealth struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
}

// handleHealth answers 200 while the process serves; unreachable providers mark it degraded
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if len(s.deps.Providers) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerCheckTimeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	resp.Providers = make(map[string]ProviderHealth, len(s.deps.Providers))
	for tier, provider := range s.deps.Providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			health := ProviderHealth{Provider: provider.Name(), Available: provider.IsAvailable(ctx)}
			mu.Lock()
			resp.Providers[tier] = health
			mu.Unlock()
		}()
	}
	wg.Wait()

	for tier, health := range resp.Providers {
		if !health.Available {
			resp.Status = "degraded"
			log.Warn().Str("component", "server").Str("tier", tier).Str("provider", health.Provider).Msg("reasoning provider unavailable")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOpportunities accepts {window, minFrequency} as a JSON body or as query parameters
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		var err error
		q := r.URL.Query()
		if req.WindowDays, err = intParam(q.Get("window")); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("window: %w", err))
			return
		}
		minFrequency := q.Get("min_frequency")
		if minFrequency == "" {
			minFrequency = q.Get("minFrequency")
		}
		if req.MinFrequency, err = intParam(minFrequency); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min_frequency: %w", err))
			return
		}
	}
	if req.WindowDays < 0 || req.MinFrequency < 0 {
		writeError(w, http.StatusBadRequest, errors.New("window and minFrequency must not be negative"))
		return
	}

	report, err := s.deps.Analyzer.Analyze(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away or the request timed out; the run finishes in the background
			writeError(w, http.StatusServiceUnavailable, errors.New("analysis still running, retry shortly"))
			return
		}
		log.Error().Str("component", "server").Err(err).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, errors.New("analysis failed"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	k, err := intParam(q.Get("k"))
	if err != nil || k < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("k must be a non-negative integer"))
		return
	}

	opts := retrieval.Options{K: k, MultiChunkPerFile: q.Get("multi") == "true"}
	if category := q.Get("category"); category != "" {
		opts.Filters = retrieval.Filters{"category": category}
	}

	evidence := s.deps.Ranker.Rank(r.Context(), query, opts)
	if evidence == nil {
		evidence = []model.Evidence{}
	}
	citations := retrieval.FormatCitations(evidence)
	if citations == nil {
		citations = []string{}
	}

	writeJSON(w, http.StatusOK, RankResponse{
		Query:         query,
		Evidence:      evidence,
		LowConfidence: model.LowConfidence(evidence),
		Citations:     citations,
		Context:       retrieval.FormatContext(evidence),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	writeJSON(w, http.StatusOK, s.classify(r, req.Text))
}

// handleRecordQuestion classifies a question and appends it to the log
func (s *Server) handleRecordQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	c := s.classify(r, req.Text)
	event, err := s.deps.Questions.Append(r.Context(), model.QuestionEvent{
		UserID:     req.UserID,
		Text:       req.Text,
		Topic:      c.Topic,
		Confidence: c.Confidence,
		Answered:   req.Answered,
		TokensUsed: req.TokensUsed,
		CostUSD:    req.CostUSD,
	})
	if err != nil {
		log.Error().Str("component", "server").Err(err).Msg("failed to record question")
		writeError(w, http.StatusInternalServerError, errors.New("failed to record question"))
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) classify(r *http.Request, text string) ClassifyResponse {
	c := s.deps.Classifier.Classify(r.Context(), text)
	d := classify.Decide(text, c.Topic)
	return ClassifyResponse{Classification: c, Tier: string(d.Tier), RouteReason: d.Reason}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Str("component", "server").Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
