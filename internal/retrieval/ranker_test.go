package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/overlay"
)

type fakeSearcher struct {
	hits       []Hit
	err        error
	block      bool
	gotTopK    int
	gotFilters Filters
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, filters Filters) ([]Hit, error) {
	f.gotTopK = topK
	f.gotFilters = filters
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func hit(id, file string, tier model.AuthorityTier, sim float64, updated time.Time, text string) Hit {
	return Hit{
		Chunk: model.DocumentChunk{
			ID:          id,
			Text:        text,
			SourceFile:  file,
			Authority:   tier,
			LastUpdated: updated,
		},
		Similarity: sim,
	}
}

func testConfig() model.RetrievalConfig {
	return model.RetrievalConfig{TopK: 5, MinSimilarity: 0.5, SearchTimeout: time.Second}
}

func newOverlay(t *testing.T) *overlay.Store {
	t.Helper()
	s, err := overlay.NewStore(context.Background(), model.OverlayConfig{}, nil)
	require.NoError(t, err)
	return s
}

func chunkIDs(evidence []model.Evidence) []string {
	ids := make([]string, len(evidence))
	for i, e := range evidence {
		ids[i] = e.ChunkID
	}
	return ids
}

func TestRank_OrdersByAuthoritySimilarityRecency(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	searcher := &fakeSearcher{hits: []Hit{
		hit("a", "a.pdf", model.TierPolicy, 0.70, older, "policy memo text"),
		hit("b", "b.pdf", model.TierCode, 0.60, older, "code text"),
		hit("c", "c.pdf", model.TierPolicy, 0.70, newer, "newer policy memo text"),
		hit("d", "d.pdf", model.TierPolicy, 0.95, older, "close policy memo"),
		hit("e", "e.pdf", model.TierHistorical, 0.99, newer, "historical note"),
		hit("f", "f.pdf", model.TierCode, 0.40, newer, "below the floor"),
	}}

	ranker := NewRanker(searcher, nil, testConfig())
	got := ranker.Rank(context.Background(), "policy", Options{K: 5})

	assert.Equal(t, []string{"b", "d", "c", "a", "e"}, chunkIDs(got))
	assert.Equal(t, 10, searcher.gotTopK, "ranker requests twice the final size")
}

func TestRank_AppliedCorrectionOverridesHit(t *testing.T) {
	ctx := context.Background()
	store := newOverlay(t)
	c, err := store.ApplyCorrection(ctx,
		"Alt-2 requires a PW3 form",
		"Alt-2 filings no longer need a PW3; costs are entered in DOB NOW",
		nil)
	require.NoError(t, err)

	searcher := &fakeSearcher{hits: []Hit{
		hit("tb", "tb-2019-01.pdf", model.TierBulletin, 0.82, time.Time{},
			"An Alt-2 application requires a PW3 cost affidavit form."),
		hit("noise", "noise.pdf", model.TierNotice, 0.90, time.Time{},
			"After-hours variances are issued for work outside 7am-6pm."),
	}}

	ranker := NewRanker(searcher, store, testConfig())
	got := ranker.Rank(ctx, "Does an Alt-2 still require a PW3 form?", Options{})

	require.Len(t, got, 2)
	assert.Equal(t, "tb", got[0].ChunkID)
	assert.Equal(t, c.ID, got[0].CorrectionID)
	assert.Equal(t, c.CorrectText, got[0].Text)
	assert.Equal(t, model.MaxAuthority, got[0].Authority)
	assert.True(t, got[0].Corrected())

	assert.Equal(t, "noise", got[1].ChunkID)
	assert.False(t, got[1].Corrected())
}

func TestRank_CorrectionOutranksHigherSimilarity(t *testing.T) {
	ctx := context.Background()
	store := newOverlay(t)
	_, err := store.ApplyCorrection(ctx, "sidewalk shed permits last one year", "Sidewalk shed permits last 90 days", nil)
	require.NoError(t, err)

	searcher := &fakeSearcher{hits: []Hit{
		hit("code", "bb-3307.pdf", model.TierBulletin, 0.95, time.Time{}, "Protection of pedestrians during construction."),
		hit("proc", "sheds.pdf", model.TierProcedure, 0.75, time.Time{}, "Sidewalk shed permits last one year from issuance."),
	}}

	got := NewRanker(searcher, store, testConfig()).Rank(ctx, "scaffolding rules", Options{})

	require.Len(t, got, 2)
	assert.Equal(t, "proc", got[0].ChunkID, "corrected hit is forced to maximum authority")
	assert.Equal(t, "Sidewalk shed permits last 90 days", got[0].Text)
	assert.Equal(t, "code", got[1].ChunkID)
}

func TestRank_CorrectionReplacesOnlyBestMatchingHit(t *testing.T) {
	ctx := context.Background()
	store := newOverlay(t)
	c, err := store.ApplyCorrection(ctx, "Alt-2 filings take two weeks", "Alt-2 filings take six to eight weeks", nil)
	require.NoError(t, err)

	searcher := &fakeSearcher{hits: []Hit{
		hit("guide", "alt2_guide.md", model.TierBulletin, 0.90, time.Time{}, "Alt-2 filings take two weeks to review after submission."),
		hit("objections", "alt2_objections.md", model.TierBulletin, 0.85, time.Time{}, "Common objections on Alt-2 filings and how to resolve them."),
		hit("checklist", "alt2_checklist.md", model.TierBulletin, 0.80, time.Time{}, "Per the checklist, Alt-2 filings take two weeks once plans are in."),
	}}

	got := NewRanker(searcher, store, testConfig()).Rank(ctx, "how long do alt-2 filings take two weeks?", Options{K: 3})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"guide", "objections", "checklist"}, chunkIDs(got))

	assert.Equal(t, c.ID, got[0].CorrectionID)
	assert.Equal(t, model.MaxAuthority, got[0].Authority)
	assert.Equal(t, c.CorrectText, got[0].Text)

	for _, e := range got[1:] {
		assert.False(t, e.Corrected(), "%s keeps its document text", e.ChunkID)
		assert.Equal(t, model.TierBulletin, e.Authority)
		assert.NotEqual(t, c.CorrectText, e.Text)
	}
}

func TestRank_PendingCorrectionInvisible(t *testing.T) {
	ctx := context.Background()
	store := newOverlay(t)
	pending, err := store.SuggestCorrection(ctx, "Alt-2 requires a PW3 form", "Alt-2 no longer needs a PW3", nil)
	require.NoError(t, err)

	searcher := &fakeSearcher{hits: []Hit{
		hit("tb", "tb.pdf", model.TierBulletin, 0.82, time.Time{}, "An Alt-2 application requires a PW3 form."),
	}}
	ranker := NewRanker(searcher, store, testConfig())

	got := ranker.Rank(ctx, "Does an Alt-2 still require a PW3 form?", Options{})
	require.Len(t, got, 1)
	assert.False(t, got[0].Corrected())
	assert.Equal(t, "An Alt-2 application requires a PW3 form.", got[0].Text)

	_, err = store.Promote(ctx, pending.ID)
	require.NoError(t, err)

	got = ranker.Rank(ctx, "Does an Alt-2 still require a PW3 form?", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].CorrectionID)
}

func TestRank_StandaloneCorrectionWithoutHits(t *testing.T) {
	ctx := context.Background()
	store := newOverlay(t)
	c, err := store.ApplyCorrection(ctx, "TCO renewals every 30 days", "TCO renewals every 90 days", nil)
	require.NoError(t, err)

	got := NewRanker(&fakeSearcher{}, store, testConfig()).Rank(ctx, "how often are TCO renewals every 30 days?", Options{})

	require.Len(t, got, 1)
	assert.Equal(t, "correction:"+c.ID, got[0].ChunkID)
	assert.Equal(t, "corrections/"+c.ID, got[0].SourceFile)
	assert.Equal(t, 1.0, got[0].Similarity)
	assert.Equal(t, model.MaxAuthority, got[0].Authority)
	assert.Equal(t, "TCO renewals every 90 days", got[0].Text)
}

func TestRank_DedupeBySourceFile(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{
		hit("zr-1", "zr-23-45.pdf", model.TierCode, 0.90, time.Time{}, "rear yard"),
		hit("zr-2", "zr-23-45.pdf", model.TierCode, 0.80, time.Time{}, "side yard"),
		hit("bb", "bb-2020.pdf", model.TierBulletin, 0.85, time.Time{}, "bulletin"),
	}}
	ranker := NewRanker(searcher, nil, testConfig())

	got := ranker.Rank(context.Background(), "yards", Options{})
	assert.Equal(t, []string{"zr-1", "bb"}, chunkIDs(got))

	got = ranker.Rank(context.Background(), "yards", Options{MultiChunkPerFile: true})
	assert.Equal(t, []string{"zr-1", "zr-2", "bb"}, chunkIDs(got))
}

func TestRank_TruncatesToK(t *testing.T) {
	var hits []Hit
	for i, file := range []string{"a", "b", "c", "d", "e"} {
		hits = append(hits, hit(file, file+".pdf", model.TierPolicy, 0.9-float64(i)*0.05, time.Time{}, file))
	}
	got := NewRanker(&fakeSearcher{hits: hits}, nil, testConfig()).Rank(context.Background(), "q", Options{K: 2})
	assert.Equal(t, []string{"a", "b"}, chunkIDs(got))
}

func TestRank_NoMatchesIsEmptyNotError(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{
		hit("x", "x.pdf", model.TierCode, 0.3, time.Time{}, "unrelated"),
	}}
	got := NewRanker(searcher, nil, testConfig()).Rank(context.Background(), "q", Options{})
	assert.Empty(t, got)
	assert.True(t, model.LowConfidence(got))
}

func TestRank_SearchErrorYieldsEmpty(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index unavailable")}
	got := NewRanker(searcher, nil, testConfig()).Rank(context.Background(), "q", Options{})
	assert.Empty(t, got)
}

func TestRank_SearchTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SearchTimeout = 20 * time.Millisecond

	start := time.Now()
	got := NewRanker(&fakeSearcher{block: true}, nil, cfg).Rank(context.Background(), "q", Options{})

	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRank_PassesFilters(t *testing.T) {
	searcher := &fakeSearcher{}
	NewRanker(searcher, nil, testConfig()).Rank(context.Background(), "q", Options{Filters: Filters{"category": "Zoning"}})
	assert.Equal(t, Filters{"category": "Zoning"}, searcher.gotFilters)
}
