package score

import (
	"math"

	"github.com/ppiankov/beacon/internal/model"
)

// DoNotPursue is the highest overall score an already-published topic can get
const DoNotPursue = 25

// Weights of the overall score
const (
	demandWeight    = 0.4
	expertiseWeight = 0.3
	relevanceWeight = 0.3
)

// DemandFor derives demand from how often a cluster was asked:
// 10+ asks score 90-100, 5-9 score 70-86, 2-4 score 50-64, a single ask scores 30
func DemandFor(frequency int) int {
	switch {
	case frequency >= 10:
		return 90 + min(frequency-10, 10)
	case frequency >= 5:
		return 70 + (frequency-5)*4
	case frequency >= 2:
		return 50 + (frequency-2)*7
	case frequency == 1:
		return 30
	default:
		return 0
	}
}

// ExpertiseCeiling bounds the expertise a provider may claim given the knowledge found.
// No documents means no expertise. Authority and document count raise the ceiling.
func ExpertiseCeiling(docs int, best model.AuthorityTier) int {
	if docs <= 0 {
		return 0
	}
	ceiling := 60 + int(best.Clamp())*4 + 5*(min(docs, 3)-1)
	return min(ceiling, 100)
}

// Overall is the weighted score
func Overall(demand, expertise, relevance int) int {
	return int(math.Round(demandWeight*float64(demand) +
		expertiseWeight*float64(expertise) +
		relevanceWeight*float64(relevance)))
}

// withoutKnowledge is the score of a topic nobody has documented yet
func withoutKnowledge(demand int) int {
	return int(math.Round(float64(demand) / 2))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
