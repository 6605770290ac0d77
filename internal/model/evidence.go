package model

import "time"

// DocumentChunk is a unit of the curated corpus as produced by ingestion
type DocumentChunk struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	SourceFile  string        `json:"source_file"`
	SourceType  string        `json:"source_type,omitempty"` // Ingestion metadata (determination, policy_memo, ...)
	Category    string        `json:"category,omitempty"`
	Authority   AuthorityTier `json:"authority_tier"`
	LastUpdated time.Time     `json:"last_updated"`
}

// AuthorityTier ranks how trustworthy a document category is when sources conflict.
// Higher wins.
type AuthorityTier int

const (
	TierHistorical AuthorityTier = 3  // Historical case files, internal notes
	TierReference  AuthorityTier = 4  // Reference material, checklists
	TierProcedure  AuthorityTier = 5  // Internal procedures and guides
	TierNotice     AuthorityTier = 6  // Service notices
	TierPolicy     AuthorityTier = 7  // Policy memos
	TierBulletin   AuthorityTier = 8  // Technical bulletins
	TierCode       AuthorityTier = 10 // Code text and determinations

	MinAuthority = TierHistorical
	MaxAuthority = TierCode
)

// Clamp forces a tier into the 3-10 range
func (t AuthorityTier) Clamp() AuthorityTier {
	if t < MinAuthority {
		return MinAuthority
	}
	if t > MaxAuthority {
		return MaxAuthority
	}
	return t
}

func (t AuthorityTier) String() string {
	switch {
	case t >= TierCode:
		return "code"
	case t >= TierBulletin:
		return "bulletin"
	case t == TierPolicy:
		return "policy"
	case t == TierNotice:
		return "notice"
	case t == TierProcedure:
		return "procedure"
	case t == TierReference:
		return "reference"
	default:
		return "historical"
	}
}

// Evidence is one entry of a ranked evidence set: a chunk, possibly overridden by a correction
type Evidence struct {
	ChunkID      string        `json:"chunk_id"`
	SourceFile   string        `json:"source_file"`
	Text         string        `json:"text"`           // Answer fragment (correction text when overridden)
	Authority    AuthorityTier `json:"authority_tier"` // Effective authority
	Similarity   float64       `json:"similarity"`
	LastUpdated  time.Time     `json:"last_updated"`
	CorrectionID string        `json:"correction_id,omitempty"` // Set when an applied correction replaced the fragment
}

// Corrected reports whether a correction overrode this entry
func (e Evidence) Corrected() bool {
	return e.CorrectionID != ""
}

// ConfidenceLabel describes how strong a vector match is
func (e Evidence) ConfidenceLabel() string {
	switch {
	case e.Similarity >= 0.90:
		return "VERY HIGH"
	case e.Similarity >= 0.80:
		return "HIGH"
	case e.Similarity >= 0.70:
		return "MODERATE"
	default:
		return "LOW"
	}
}

// LowConfidence reports whether an evidence set is too thin to cite.
// Callers answer from general knowledge and flag the answer.
func LowConfidence(evidence []Evidence) bool {
	return len(evidence) == 0
}
