// Package classify assigns questions to topics and picks a reasoning tier for them.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/cache"
	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// bareTopicConfidence is assigned when the provider answers with just a topic name
const bareTopicConfidence = 0.7

var systemPrompt = `You are a topic classifier for a NYC permit expediting firm.
Categorize the question into exactly ONE topic from this list:
` + strings.Join(model.Topics, "\n") + `

Rules:
1. Be specific: "What time can you work until?" is Noise/Hours, not General.
2. Commands like "/feedback" or "/correct" are General.
3. Respond with a JSON object: {"topic": "<one of the topics>", "confidence": <0.0-1.0>}`

// Classifier delegates to a reasoning provider and falls back to keywords.
// Classify never fails.
type Classifier struct {
	provider llm.Provider
	timeout  time.Duration

	responses *cache.ResponseCache
	cacheTTL  time.Duration
}

// NewClassifier creates a classifier. A nil provider means keyword classification only.
func NewClassifier(provider llm.Provider, cfg model.ClassifierConfig) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Classifier{provider: provider, timeout: timeout}
}

// WithResponseCache routes reasoning calls through responses: identical concurrent
// questions share one provider call and successful answers are kept for ttl.
func (c *Classifier) WithResponseCache(responses *cache.ResponseCache, ttl time.Duration) *Classifier {
	c.responses = responses
	c.cacheTTL = ttl
	return c
}

type classification struct {
	Topic      string   `json:"topic"`
	Confidence *float64 `json:"confidence"`
}

// Classify returns the topic of text
func (c *Classifier) Classify(ctx context.Context, text string) model.Classification {
	if c.provider == nil || strings.TrimSpace(text) == "" {
		return KeywordClassify(text)
	}

	var (
		result model.Classification
		err    error
	)
	if c.responses != nil {
		result, err = cache.CoalesceJSON(ctx, c.responses, cache.Fingerprint(text, "classify", c.provider.Name()), c.cacheTTL,
			func(ctx context.Context) (model.Classification, error) { return c.reason(ctx, text) })
	} else {
		result, err = c.reason(ctx, text)
	}
	if err != nil {
		log.Warn().
			Str("component", "classify").
			Str("provider", c.provider.Name()).
			Err(err).
			Str("question", util.Truncate(text, 60)).
			Msg("reasoning classification failed, using keyword fallback")
		return KeywordClassify(text)
	}
	return result
}

func (c *Classifier) reason(ctx context.Context, text string) (model.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      "Question: " + text,
		MaxTokens:   60,
		Temperature: 0.01,
		JSON:        true,
	})
	if err != nil {
		return model.Classification{}, err
	}
	return parseClassification(resp.Text)
}

// parseClassification accepts {"topic","confidence"} or a bare topic name
func parseClassification(text string) (model.Classification, error) {
	bare := strings.Trim(strings.TrimSpace(text), `"'.`)
	if model.IsTopic(bare) {
		return model.Classification{Topic: bare, Confidence: bareTopicConfidence, Source: model.SourceReasoning}, nil
	}

	var parsed classification
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &parsed); err != nil {
		return model.Classification{}, fmt.Errorf("malformed classification %q: %w", util.Truncate(text, 80), err)
	}
	if !model.IsTopic(parsed.Topic) {
		return model.Classification{}, fmt.Errorf("unknown topic %q", parsed.Topic)
	}

	confidence := bareTopicConfidence
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
		if confidence < 0 || confidence > 1 {
			return model.Classification{}, fmt.Errorf("confidence %v out of range", confidence)
		}
	}

	return model.Classification{Topic: parsed.Topic, Confidence: confidence, Source: model.SourceReasoning}, nil
}
