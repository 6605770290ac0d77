package classify

import (
	"strings"

	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/util"
)

// longQueryWords is the word count above which a query goes to the capable tier
const longQueryWords = 25

// complexTopics always need the capable tier
var complexTopics = map[string]bool{
	"Zoning":        true,
	"Building Code": true,
}

// capableCues signal analysis, comparison or multi-step reasoning
var capableCues = []string{
	"analyze", "analysis", "strategy", "recommend", "should i", "should we",
	"whats the best", "compare", "comparison", "difference between", "pros and cons",
	"how do i handle", "what are my options", "help me understand",
	"objection", "resolve", "appeal", "variance", "special permit",
	"step by step", "walk me through", "explain how", "plan for",
	"far calculation", "zoning lot", "use group", "non conforming", "nonconforming",
	"change of use", "certificate of occupancy",
}

// clauseConnectors join independent clauses; two or more make a query multi-clause
var clauseConnectors = map[string]bool{
	"but": true, "because": true, "although": true, "whereas": true, "unless": true,
	"otherwise": true, "versus": true, "vs": true, "then": true, "if": true,
}

// Decision is a routing outcome with the rule that produced it
type Decision struct {
	Tier   llm.Tier
	Reason string
}

// Route picks the reasoning tier for a query. Pure: no network, no state.
func Route(query, topic string) llm.Tier {
	return Decide(query, topic).Tier
}

// Decide is Route with an explanation
func Decide(query, topic string) Decision {
	if complexTopics[topic] {
		return Decision{Tier: llm.TierCapable, Reason: "complex topic " + topic}
	}

	normalized := util.Normalize(query)
	for _, cue := range capableCues {
		if util.ContainsPhrase(normalized, cue) {
			return Decision{Tier: llm.TierCapable, Reason: "reasoning cue " + cue}
		}
	}

	words := strings.Fields(normalized)
	if len(words) > longQueryWords {
		return Decision{Tier: llm.TierCapable, Reason: "long query"}
	}

	if strings.Count(query, "?") > 1 {
		return Decision{Tier: llm.TierCapable, Reason: "multiple questions"}
	}
	connectors := 0
	for _, w := range words {
		if clauseConnectors[w] {
			connectors++
		}
	}
	if connectors >= 2 {
		return Decision{Tier: llm.TierCapable, Reason: "multi-clause"}
	}

	return Decision{Tier: llm.TierFast, Reason: "simple lookup"}
}
