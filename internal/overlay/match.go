package overlay

import (
	"strings"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// Matcher decides whether a correction applies to a piece of text.
//
// A correction matches when its wrong text occurs verbatim (after normalization)
// in the text, or when the correction's meaningful terms (wrong text plus topics)
// share at least MinSharedTerms with the text and cover MinOverlap of the smaller set.
type Matcher struct {
	minShared  int
	minOverlap float64
}

// NewMatcher builds a matcher, falling back to 2 shared terms / 0.6 overlap
func NewMatcher(cfg model.OverlayConfig) *Matcher {
	m := &Matcher{minShared: cfg.MinSharedTerms, minOverlap: cfg.MinOverlap}
	if m.minShared <= 0 {
		m.minShared = 2
	}
	if m.minOverlap <= 0 {
		m.minOverlap = 0.6
	}
	return m
}

// Matches reports whether c applies to text
func (m *Matcher) Matches(c model.Correction, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if util.ContainsPhrase(text, c.WrongText) {
		return true
	}

	terms := util.MeaningfulTerms(c.WrongText + " " + strings.Join(c.Topics, " "))
	correctionTerms := util.TermSet(terms)
	textTerms := util.TermSet(util.MeaningfulTerms(text))

	if util.Shared(correctionTerms, textTerms) < m.minShared {
		return false
	}
	return util.Overlap(correctionTerms, textTerms) >= m.minOverlap
}
