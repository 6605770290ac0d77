package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/model"
)

// CorrectionMatcher returns the applied corrections relevant to a text, latest applied first
type CorrectionMatcher interface {
	Match(text string) []model.Correction
}

// Options controls a single ranking call
type Options struct {
	K                 int     // Evidence entries to return; config TopK when zero
	MultiChunkPerFile bool    // Keep more than one chunk per source file
	Filters           Filters // Passed through to the vector searcher
}

// Ranker merges vector hits with the correction overlay
type Ranker struct {
	searcher      VectorSearcher
	corrections   CorrectionMatcher
	topK          int
	minSimilarity float64
	timeout       time.Duration
	multiChunk    bool
}

// NewRanker creates a ranker. corrections may be nil.
func NewRanker(searcher VectorSearcher, corrections CorrectionMatcher, cfg model.RetrievalConfig) *Ranker {
	r := &Ranker{
		searcher:      searcher,
		corrections:   corrections,
		topK:          cfg.TopK,
		minSimilarity: cfg.MinSimilarity,
		timeout:       cfg.SearchTimeout,
		multiChunk:    cfg.MultiChunkPerFile,
	}
	if r.topK <= 0 {
		r.topK = 5
	}
	if r.timeout <= 0 {
		r.timeout = 5 * time.Second
	}
	return r
}

// Rank returns at most K evidence entries ordered by authority, then similarity, then recency.
// An empty result means nothing in the corpus cleared the similarity floor; it is not a failure.
func (r *Ranker) Rank(ctx context.Context, query string, opts Options) []model.Evidence {
	k := opts.K
	if k <= 0 {
		k = r.topK
	}

	hits := r.search(ctx, query, 2*k, opts.Filters)

	var queryMatches []model.Correction
	if r.corrections != nil {
		queryMatches = r.corrections.Match(query)
	}

	evidence := make([]model.Evidence, 0, len(hits)+len(queryMatches))
	for _, h := range hits {
		if h.Similarity < r.minSimilarity {
			continue
		}
		evidence = append(evidence, model.Evidence{
			ChunkID:     h.Chunk.ID,
			SourceFile:  h.Chunk.SourceFile,
			Text:        h.Chunk.Text,
			Authority:   ChunkAuthority(h.Chunk),
			Similarity:  h.Similarity,
			LastUpdated: h.Chunk.LastUpdated,
		})
	}

	// Each correction replaces at most one fragment, the best ranked one it matches
	sortEvidence(evidence)
	used := make(map[string]bool)
	for i := range evidence {
		c, ok := r.correctionFor(evidence[i].Text, used)
		if !ok {
			continue
		}
		evidence[i].Text = c.CorrectText
		evidence[i].Authority = model.MaxAuthority
		evidence[i].CorrectionID = c.ID
		used[c.ID] = true
	}

	// Query-relevant corrections with no matching chunk still reach the answer
	for _, c := range queryMatches {
		if used[c.ID] {
			continue
		}
		used[c.ID] = true
		evidence = append(evidence, correctionEvidence(c))
	}

	sortEvidence(evidence)

	if !(opts.MultiChunkPerFile || r.multiChunk) {
		evidence = dedupeBySource(evidence)
	}
	if len(evidence) > k {
		evidence = evidence[:k]
	}

	log.Debug().
		Str("component", "retrieval").
		Int("hits", len(hits)).
		Int("evidence", len(evidence)).
		Int("corrections", len(used)).
		Msg("ranked")

	return evidence
}

func (r *Ranker) search(ctx context.Context, query string, n int, filters Filters) []Hit {
	if r.searcher == nil {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	hits, err := r.searcher.Search(searchCtx, query, n, filters)
	if err != nil {
		log.Warn().
			Str("component", "retrieval").
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("vector search failed, continuing without documents")
		return nil
	}
	return hits
}

// correctionFor returns the latest applied correction matching hitText that has not
// already replaced a higher ranked fragment
func (r *Ranker) correctionFor(hitText string, used map[string]bool) (model.Correction, bool) {
	if r.corrections == nil {
		return model.Correction{}, false
	}
	for _, c := range r.corrections.Match(hitText) {
		if !used[c.ID] {
			return c, true
		}
	}
	return model.Correction{}, false
}

func correctionEvidence(c model.Correction) model.Evidence {
	e := model.Evidence{
		ChunkID:      "correction:" + c.ID,
		SourceFile:   "corrections/" + c.ID,
		Text:         c.CorrectText,
		Authority:    model.MaxAuthority,
		Similarity:   1.0,
		CorrectionID: c.ID,
	}
	if c.AppliedAt != nil {
		e.LastUpdated = *c.AppliedAt
	}
	return e
}

func sortEvidence(evidence []model.Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i], evidence[j]
		if a.Authority != b.Authority {
			return a.Authority > b.Authority
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		return a.ChunkID < b.ChunkID
	})
}

// dedupeBySource keeps the first (highest ranked) entry per source file
func dedupeBySource(evidence []model.Evidence) []model.Evidence {
	seen := make(map[string]bool, len(evidence))
	out := evidence[:0]
	for _, e := range evidence {
		if seen[e.SourceFile] {
			continue
		}
		seen[e.SourceFile] = true
		out = append(out, e)
	}
	return out
}
