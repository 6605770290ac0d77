package model

import "time"

// QuestionEvent is one entry of the append-only question log.
// Topic is the only field backfilled after creation.
type QuestionEvent struct {
	ID         int64     `json:"id" db:"id"`
	Timestamp  time.Time `json:"timestamp" db:"-"`
	UserID     string    `json:"user_id" db:"user_id"`
	Text       string    `json:"text" db:"text"`
	Topic      string    `json:"topic,omitempty" db:"topic"` // Empty until classified
	Confidence float64   `json:"confidence" db:"confidence"`
	Answered   bool      `json:"answered" db:"answered"`
	TokensUsed int       `json:"tokens_used" db:"tokens_used"`
	CostUSD    float64   `json:"cost_usd" db:"cost_usd"`
}

// QuestionCluster groups topically similar questions of one analysis run
type QuestionCluster struct {
	Label          string          `json:"label"`
	Members        []QuestionEvent `json:"-"`
	TotalFrequency int             `json:"total_frequency"` // Always len(Members)
	CentroidText   string          `json:"centroid_text"`   // Most frequent distinct member text
}

// DistinctTexts returns member texts in first-seen order without repeats
func (c QuestionCluster) DistinctTexts() []string {
	seen := make(map[string]bool)
	var texts []string
	for _, m := range c.Members {
		if !seen[m.Text] {
			seen[m.Text] = true
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// ClassificationSource identifies which classifier variant produced a topic
type ClassificationSource string

const (
	SourceReasoning       ClassificationSource = "reasoning-provider"
	SourceKeywordFallback ClassificationSource = "keyword-fallback"
)

// Classification is the result of topic classification
type Classification struct {
	Topic      string               `json:"topic"`
	Confidence float64              `json:"confidence"`
	Source     ClassificationSource `json:"source"`
}

// TopicGeneral is the catch-all topic
const TopicGeneral = "General"

// Topics is the closed set of categories a question may be assigned to
var Topics = []string{
	"DOB Filings",     // Permits, ALT1/2/3, NB, PAA
	"Zoning",          // Use groups, FAR, setbacks, variances
	"DHCR",            // Rent stabilization, MCI, IAI
	"Violations",      // ECB, DOB violations, penalties
	"Certificates",    // CO, TCO, sign-offs
	"Building Code",   // Egress, fire safety, structural
	"FDNY",            // Fire alarms, sprinklers, suppression
	"MDL",             // Multiple Dwelling Law, Class A/B
	"Noise/Hours",     // Construction hours, noise regulations
	"Landmarks",       // LPC, historic preservation
	"Property Lookup", // Address/BIN lookups
	"Plans/Drawings",  // Architectural plans, blueprints
	TopicGeneral,
}

// IsTopic reports whether name belongs to the closed topic set
func IsTopic(name string) bool {
	for _, t := range Topics {
		if t == name {
			return true
		}
	}
	return false
}
