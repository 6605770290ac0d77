package classify

import (
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

type topicKeywords struct {
	topic    string
	keywords []string
}

// keywordTable is checked in order; more specific topics come first
var keywordTable = []topicKeywords{
	{"Noise/Hours", []string{"what time", "work until", "noise", "after hours", "afterhours", "construction hours", "weekend work"}},
	{"FDNY", []string{"fdny", "fire alarm", "sprinkler", "sprinklers", "standpipe", "suppression", "ansul"}},
	{"Landmarks", []string{"landmarks", "landmark", "lpc", "historic", "preservation"}},
	{"Certificates", []string{"co", "certificate of occupancy", "tco", "temporary co", "sign off", "signoff", "loa"}},
	{"Violations", []string{"violation", "violations", "ecb", "oath", "penalty", "penalties", "stop work order"}},
	{"DHCR", []string{"dhcr", "rent", "stabilized", "stabilization", "mci", "iai", "lease", "rent increase"}},
	{"DOB Filings", []string{"dob", "permit", "permits", "filing", "file", "alt1", "alt2", "alt3", "nb", "dm", "paa", "objection", "objections", "pw3"}},
	{"Building Code", []string{"building code", "egress", "fire safety", "occupancy group", "structural"}},
	{"MDL", []string{"mdl", "multiple dwelling", "class a", "class b"}},
	{"Zoning", []string{"zoning", "use group", "far", "floor area", "setback", "setbacks", "variance", "zr"}},
	{"Property Lookup", []string{"lookup", "look up", "address", "bin", "bbl", "block and lot"}},
	{"Plans/Drawings", []string{"plan", "plans", "drawing", "drawings", "elevation", "floor plan", "blueprint", "blueprints"}},
}

// KeywordClassify assigns a topic from the fixed keyword table.
// Pure and deterministic. Fallback results always carry zero confidence;
// unmatched text is General.
func KeywordClassify(text string) model.Classification {
	normalized := util.Normalize(text)
	for _, entry := range keywordTable {
		for _, kw := range entry.keywords {
			if util.ContainsPhrase(normalized, kw) {
				return model.Classification{Topic: entry.topic, Source: model.SourceKeywordFallback}
			}
		}
	}
	return model.Classification{Topic: model.TopicGeneral, Source: model.SourceKeywordFallback}
}
