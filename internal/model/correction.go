package model

import "time"

// CorrectionStatus tracks where a correction is in the review workflow
type CorrectionStatus string

const (
	CorrectionPending CorrectionStatus = "pending" // Suggested, awaiting review; never injected into answers
	CorrectionApplied CorrectionStatus = "applied" // Visible to ranking immediately
)

// Correction is an admin override for a wrong answer fragment
type Correction struct {
	ID          string           `json:"id" yaml:"id"`
	WrongText   string           `json:"wrong_text" yaml:"wrong_text"`
	CorrectText string           `json:"correct_text" yaml:"correct_text"`
	Topics      []string         `json:"topics,omitempty" yaml:"topics,omitempty"`
	Status      CorrectionStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time        `json:"created_at" yaml:"created_at"`
	AppliedAt   *time.Time       `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// IsApplied reports whether the correction participates in ranking
func (c Correction) IsApplied() bool {
	return c.Status == CorrectionApplied && c.AppliedAt != nil
}
