package model

// ContentFormat is the recommended way to publish an opportunity
type ContentFormat string

const (
	FormatBlogPost   ContentFormat = "blog_post"
	FormatNewsletter ContentFormat = "newsletter_mention"
	FormatGuide      ContentFormat = "guide"
	FormatSkip       ContentFormat = "skip"
)

// ParseContentFormat validates a format string. "comprehensive_guide" is accepted as guide.
func ParseContentFormat(s string) (ContentFormat, bool) {
	switch ContentFormat(s) {
	case FormatBlogPost, FormatNewsletter, FormatGuide, FormatSkip:
		return ContentFormat(s), true
	case "comprehensive_guide":
		return FormatGuide, true
	default:
		return "", false
	}
}

// Priority buckets the overall score
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// PriorityFor maps an overall score to its priority bucket
func PriorityFor(overall int) Priority {
	switch {
	case overall >= 80:
		return PriorityHigh
	case overall >= 60:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ContentOpportunity is a scored recommendation to author new material.
// All scores are 0-100 integers.
type ContentOpportunity struct {
	Title             string          `json:"title"`
	Cluster           QuestionCluster `json:"cluster"`
	Questions         []string        `json:"questions"` // Up to 10 sample questions
	QuestionCount     int             `json:"question_count"`
	RelevanceScore    int             `json:"relevance_score"`
	ExpertiseScore    int             `json:"expertise_score"`
	DemandScore       int             `json:"demand_score"`
	OverallScore      int             `json:"overall_score"`
	KnowledgeDocs     []string        `json:"knowledge_docs"`
	ContentAngle      string          `json:"content_angle"`
	RecommendedFormat ContentFormat   `json:"recommended_format"`
	Reasoning         string          `json:"reasoning"`
	Priority          Priority        `json:"priority"`
}

// AnalysisReport is the externally observed shape of an analysis run
type AnalysisReport struct {
	Opportunities       []ContentOpportunity `json:"opportunities"`
	AnalysisTimeSeconds float64              `json:"analysis_time_seconds"`
	QuestionsAnalyzed   int                  `json:"questions_analyzed"`
	OpportunitiesFound  int                  `json:"opportunities_found"`
}
