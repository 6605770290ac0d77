package score

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// ErrSchemaViolation is wrapped by every SchemaError
var ErrSchemaViolation = errors.New("reasoning output violates the scoring schema")

// SchemaError lists what was wrong with a provider answer
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(e.Problems, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// Assessment is a validated provider answer
type Assessment struct {
	Relevance int
	Expertise int
	Demand    int
	Angle     string
	Format    model.ContentFormat
	Reasoning string
}

// rawAssessment keeps every field optional so missing keys can be reported
type rawAssessment struct {
	RelevanceScore    *float64 `json:"relevance_score"`
	ExpertiseScore    *float64 `json:"expertise_score"`
	DemandScore       *float64 `json:"demand_score"`
	ContentAngle      string   `json:"content_angle"`
	RecommendedFormat string   `json:"recommended_format"`
	Reasoning         string   `json:"reasoning"`
}

// ParseAssessment decodes and validates a provider answer. Nothing untyped leaves this function.
func ParseAssessment(text string) (Assessment, error) {
	var raw rawAssessment
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &raw); err != nil {
		return Assessment{}, &SchemaError{Problems: []string{
			fmt.Sprintf("invalid JSON object (%v): %q", err, util.Truncate(text, 80)),
		}}
	}

	var problems []string
	score := func(name string, v *float64) int {
		switch {
		case v == nil:
			problems = append(problems, name+" missing")
			return 0
		case math.IsNaN(*v) || *v < 0 || *v > 100:
			problems = append(problems, fmt.Sprintf("%s %v outside 0-100", name, *v))
			return 0
		}
		return int(math.Round(*v))
	}

	a := Assessment{
		Relevance: score("relevance_score", raw.RelevanceScore),
		Expertise: score("expertise_score", raw.ExpertiseScore),
		Demand:    score("demand_score", raw.DemandScore),
		Angle:     strings.TrimSpace(raw.ContentAngle),
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}

	format, ok := model.ParseContentFormat(strings.TrimSpace(raw.RecommendedFormat))
	if !ok {
		problems = append(problems, fmt.Sprintf("recommended_format %q unknown", raw.RecommendedFormat))
	}
	a.Format = format

	if a.Angle == "" {
		problems = append(problems, "content_angle empty")
	}
	if a.Reasoning == "" {
		problems = append(problems, "reasoning empty")
	}

	if len(problems) > 0 {
		return Assessment{}, &SchemaError{Problems: problems}
	}
	return a, nil
}
