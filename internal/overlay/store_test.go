package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/beacon/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), model.OverlayConfig{}, nil)
	require.NoError(t, err)
	return s
}

// fixedClock returns increasing timestamps one second apart
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestApplyCorrection_VisibleImmediately(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.ApplyCorrection(ctx, "Alt-2 requires a PW3", "Alt-2 cost affidavits use the PW3 only for work over $5k", []string{"dob filings"})
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionApplied, c.Status)
	require.NotNil(t, c.AppliedAt)

	matched := s.Match("Does an alt-2 requires a PW3 form?")
	require.Len(t, matched, 1)
	assert.Equal(t, c.ID, matched[0].ID)
}

func TestSuggestCorrection_InvisibleUntilPromoted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.SuggestCorrection(ctx, "TCO renewals every 30 days", "TCOs are renewed every 90 days", nil)
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionPending, c.Status)
	assert.Nil(t, c.AppliedAt)

	assert.Empty(t, s.Match("how often are TCO renewals every 30 days"))
	assert.Empty(t, s.Active())
	require.Len(t, s.ListPending(), 1)

	promoted, err := s.Promote(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionApplied, promoted.Status)
	assert.Len(t, s.Match("how often are TCO renewals every 30 days"), 1)
	assert.Empty(t, s.ListPending())
}

func TestPromote_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Promote(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := s.ApplyCorrection(ctx, "wrong", "right", nil)
	require.NoError(t, err)
	_, err = s.Promote(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestApplyCorrection_EmptyText(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ApplyCorrection(context.Background(), "  ", "right", nil)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestActive_LastWriteWinsByAppliedAt(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := s.ApplyCorrection(ctx, "Sidewalk shed permit lasts 1 year", "Sidewalk shed permits last 90 days", nil)
	require.NoError(t, err)
	second, err := s.ApplyCorrection(ctx, "sidewalk shed permit lasts 1 year!", "Sidewalk shed permits last one year with renewal", nil)
	require.NoError(t, err)

	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	// Audit trail keeps both
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
}

func TestActive_PromotedPendingWinsWhenLater(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	pending, err := s.SuggestCorrection(ctx, "egress width 36 inches", "egress width is 44 inches", nil)
	require.NoError(t, err)
	_, err = s.ApplyCorrection(ctx, "egress width 36 inches", "egress width is 40 inches", nil)
	require.NoError(t, err)

	_, err = s.Promote(ctx, pending.ID)
	require.NoError(t, err)

	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, pending.ID, active[0].ID)
}

func TestStore_ConcurrentApplies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ApplyCorrection(ctx, "same wrong text", "same correct text", nil)
			_ = s.Match("same wrong text here")
		}()
	}
	wg.Wait()

	assert.Len(t, s.All(), 50)
	assert.Len(t, s.Active(), 1)
}

type memJournal struct {
	records []model.Correction
	fail    bool
}

func (j *memJournal) Record(ctx context.Context, c model.Correction) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.records = append(j.records, c)
	return nil
}

func (j *memJournal) Load(ctx context.Context) ([]model.Correction, error) {
	latest := make(map[string]model.Correction)
	var order []string
	for _, c := range j.records {
		if _, ok := latest[c.ID]; !ok {
			order = append(order, c.ID)
		}
		latest[c.ID] = c
	}
	out := make([]model.Correction, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

func TestStore_JournalReplay(t *testing.T) {
	ctx := context.Background()
	j := &memJournal{}

	s, err := NewStore(ctx, model.OverlayConfig{}, j)
	require.NoError(t, err)
	applied, err := s.ApplyCorrection(ctx, "noise permit after 6pm", "after-hours variance required after 6pm", nil)
	require.NoError(t, err)
	pending, err := s.SuggestCorrection(ctx, "FDNY letter takes 2 weeks", "FDNY letters take 4-6 weeks", nil)
	require.NoError(t, err)

	replayed, err := NewStore(ctx, model.OverlayConfig{}, j)
	require.NoError(t, err)

	got, err := replayed.Get(applied.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApplied())
	require.Len(t, replayed.ListPending(), 1)
	assert.Equal(t, pending.ID, replayed.ListPending()[0].ID)
	assert.Len(t, replayed.Match("noise permit after 6pm on weekdays"), 1)
}

func TestStore_JournalFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	j := &memJournal{fail: true}

	s, err := NewStore(ctx, model.OverlayConfig{}, j)
	require.NoError(t, err)

	_, err = s.ApplyCorrection(ctx, "wrong", "right", nil)
	require.Error(t, err)
	assert.Empty(t, s.All())
}
