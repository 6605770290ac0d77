// Package cluster groups logged questions into topical clusters.
//
// Clustering is deterministic: the same multiset of events yields the same
// clusters regardless of log order.
package cluster

import (
	"sort"
	"strings"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// DefaultThreshold is the Jaccard similarity a question needs to join a cluster
const DefaultThreshold = 0.3

// group is every event sharing one normalized text
type group struct {
	key    string // Normalized text
	text   string // Most frequent raw spelling
	terms  map[string]bool
	events []model.QuestionEvent
}

func (g *group) freq() int { return len(g.events) }

// Cluster groups events greedily. Near-duplicate texts are visited by
// (frequency desc, text asc); each joins the most similar existing cluster
// when the Jaccard similarity of their term sets reaches threshold, otherwise
// it seeds a new cluster. A threshold <= 0 means DefaultThreshold.
func Cluster(events []model.QuestionEvent, threshold float64) []model.QuestionCluster {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	groups := groupByText(events)
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].freq() != groups[j].freq() {
			return groups[i].freq() > groups[j].freq()
		}
		return groups[i].key < groups[j].key
	})

	type building struct {
		seed   map[string]bool
		groups []*group
	}
	var clusters []*building

	for _, g := range groups {
		best, bestSim := -1, 0.0
		for i, c := range clusters {
			if sim := util.Jaccard(g.terms, c.seed); sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best >= 0 && bestSim >= threshold {
			clusters[best].groups = append(clusters[best].groups, g)
			continue
		}
		clusters = append(clusters, &building{seed: g.terms, groups: []*group{g}})
	}

	out := make([]model.QuestionCluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, finish(c.groups))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalFrequency != out[j].TotalFrequency {
			return out[i].TotalFrequency > out[j].TotalFrequency
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// groupByText merges events whose texts normalize identically. Blank texts are dropped.
func groupByText(events []model.QuestionEvent) []*group {
	byKey := make(map[string]*group)
	var groups []*group
	for _, e := range events {
		key := util.Normalize(e.Text)
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, terms: util.TermSet(util.Terms(key))}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.events = append(g.events, e)
	}

	for _, g := range groups {
		g.text = mostFrequent(g.events)
	}
	return groups
}

// mostFrequent returns the most common trimmed text, ties lexically ascending
func mostFrequent(events []model.QuestionEvent) string {
	counts := make(map[string]int)
	for _, e := range events {
		counts[strings.TrimSpace(e.Text)]++
	}
	best, bestN := "", 0
	for text, n := range counts {
		if n > bestN || (n == bestN && text < best) {
			best, bestN = text, n
		}
	}
	return best
}

func finish(groups []*group) model.QuestionCluster {
	centroid := groups[0]
	var members []model.QuestionEvent
	for _, g := range groups {
		if g.freq() > centroid.freq() || (g.freq() == centroid.freq() && g.text < centroid.text) {
			centroid = g
		}
		members = append(members, g.events...)
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Text < b.Text
	})

	return model.QuestionCluster{
		Label:          centroid.text,
		Members:        members,
		TotalFrequency: len(members),
		CentroidText:   centroid.text,
	}
}
