// Package overlay holds admin corrections that override retrieved answer fragments.
//
// Corrections are append-and-status-only: there is no delete, and the only
// transition is pending -> applied. For any given wrong text the applied
// correction with the latest AppliedAt wins.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

var (
	// ErrNotFound is returned for an unknown correction ID
	ErrNotFound = errors.New("correction not found")
	// ErrNotPending is returned when promoting a correction that is already applied
	ErrNotPending = errors.New("correction is not pending")
	// ErrEmptyText is returned when wrong or correct text is blank
	ErrEmptyText = errors.New("wrong and correct text are required")
)

// Journal persists every correction state change
type Journal interface {
	Record(ctx context.Context, c model.Correction) error
	Load(ctx context.Context) ([]model.Correction, error)
}

// Store is the process-scoped correction overlay. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*model.Correction
	order   []string          // IDs in creation order
	active  map[string]string // normalized wrong text -> winning applied correction ID
	matcher *Matcher
	journal Journal
	now     func() time.Time
}

// NewStore creates a store and replays the journal if one is given
func NewStore(ctx context.Context, cfg model.OverlayConfig, journal Journal) (*Store, error) {
	s := &Store{
		byID:    make(map[string]*model.Correction),
		active:  make(map[string]string),
		matcher: NewMatcher(cfg),
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if journal == nil {
		return s, nil
	}

	existing, err := journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corrections: %w", err)
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].CreatedAt.Before(existing[j].CreatedAt)
	})
	for i := range existing {
		c := existing[i]
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
		s.index(&c)
	}
	log.Debug().Int("corrections", len(existing)).Msg("loaded correction overlay")

	return s, nil
}

// ApplyCorrection records a correction that is visible to ranking immediately
func (s *Store) ApplyCorrection(ctx context.Context, wrong, correct string, topics []string) (model.Correction, error) {
	return s.add(ctx, wrong, correct, topics, model.CorrectionApplied)
}

// SuggestCorrection records a pending correction for review. It is invisible to ranking.
func (s *Store) SuggestCorrection(ctx context.Context, wrong, correct string, topics []string) (model.Correction, error) {
	return s.add(ctx, wrong, correct, topics, model.CorrectionPending)
}

func (s *Store) add(ctx context.Context, wrong, correct string, topics []string, status model.CorrectionStatus) (model.Correction, error) {
	wrong = strings.TrimSpace(wrong)
	correct = strings.TrimSpace(correct)
	if wrong == "" || correct == "" {
		return model.Correction{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := model.Correction{
		ID:          uuid.NewString(),
		WrongText:   wrong,
		CorrectText: correct,
		Topics:      append([]string(nil), topics...),
		Status:      status,
		CreatedAt:   now,
	}
	if status == model.CorrectionApplied {
		c.AppliedAt = &now
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, c); err != nil {
			return model.Correction{}, fmt.Errorf("record correction: %w", err)
		}
	}

	s.byID[c.ID] = &c
	s.order = append(s.order, c.ID)
	s.index(&c)

	return copyCorrection(c), nil
}

// Promote transitions a pending correction to applied
func (s *Store) Promote(ctx context.Context, id string) (model.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return model.Correction{}, ErrNotFound
	}
	if c.Status != model.CorrectionPending {
		return model.Correction{}, ErrNotPending
	}

	promoted := *c
	now := s.now()
	promoted.Status = model.CorrectionApplied
	promoted.AppliedAt = &now

	if s.journal != nil {
		if err := s.journal.Record(ctx, promoted); err != nil {
			return model.Correction{}, fmt.Errorf("record promotion: %w", err)
		}
	}

	*c = promoted
	s.index(c)

	return copyCorrection(promoted), nil
}

// index makes c the active correction for its wrong text unless a later one already is.
// Caller holds the write lock.
func (s *Store) index(c *model.Correction) {
	if !c.IsApplied() {
		return
	}
	key := util.Normalize(c.WrongText)
	if curID, ok := s.active[key]; ok {
		cur := s.byID[curID]
		if cur.AppliedAt.After(*c.AppliedAt) {
			return
		}
	}
	s.active[key] = c.ID
}

// Get returns a correction by ID
func (s *Store) Get(id string) (model.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return model.Correction{}, ErrNotFound
	}
	return copyCorrection(*c), nil
}

// ListPending returns pending corrections in creation order
func (s *Store) ListPending() []model.Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]model.Correction, 0)
	for _, id := range s.order {
		if c := s.byID[id]; c.Status == model.CorrectionPending {
			pending = append(pending, copyCorrection(*c))
		}
	}
	return pending
}

// All returns every correction in creation order (audit view)
func (s *Store) All() []model.Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]model.Correction, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, copyCorrection(*s.byID[id]))
	}
	return all
}

// Active returns the winning applied correction per wrong text, latest applied first
func (s *Store) Active() []model.Correction {
	s.mu.RLock()
	active := make([]model.Correction, 0, len(s.active))
	for _, id := range s.active {
		active = append(active, copyCorrection(*s.byID[id]))
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		ai, aj := *active[i].AppliedAt, *active[j].AppliedAt
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// Match returns the active corrections relevant to text, latest applied first
func (s *Store) Match(text string) []model.Correction {
	var matched []model.Correction
	for _, c := range s.Active() {
		if s.matcher.Matches(c, text) {
			matched = append(matched, c)
		}
	}
	return matched
}

func copyCorrection(c model.Correction) model.Correction {
	c.Topics = append([]string(nil), c.Topics...)
	if c.AppliedAt != nil {
		t := *c.AppliedAt
		c.AppliedAt = &t
	}
	return c
}
