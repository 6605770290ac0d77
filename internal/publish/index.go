// Package publish indexes already-published content so the scorer can skip covered topics.
package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/beacon/internal/util"
)

// DefaultThreshold is the overlap coefficient above which content counts as a near duplicate
const DefaultThreshold = 0.75

// Content is a published article, guide or newsletter item
type Content struct {
	Title     string `yaml:"title" json:"title"`
	Angle     string `yaml:"angle,omitempty" json:"angle,omitempty"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
	Format    string `yaml:"format,omitempty" json:"format,omitempty"`
	Published string `yaml:"published,omitempty" json:"published,omitempty"` // YYYY-MM-DD
}

type catalog struct {
	Content []Content `yaml:"content"`
}

// Index answers near-duplicate queries over the catalogue. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	items     []Content
	threshold float64
}

// NewIndex builds an index over items
func NewIndex(items []Content, threshold float64) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{items: append([]Content(nil), items...), threshold: threshold}
}

// Load reads a YAML catalogue. A missing file is an empty catalogue.
func Load(path string, threshold float64) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewIndex(nil, threshold), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	return NewIndex(c.Content, threshold), nil
}

// Save writes the catalogue as YAML
func (i *Index) Save(path string) error {
	i.mu.RLock()
	data, err := yaml.Marshal(catalog{Content: i.items})
	i.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal catalogue: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create catalogue dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write catalogue: %w", err)
	}
	return nil
}

// Add appends an item
func (i *Index) Add(c Content) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, c)
}

// Len returns the catalogue size
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.items)
}

// FindSimilar returns published items whose title or angle covers titleOrAngle, best first
func (i *Index) FindSimilar(titleOrAngle string) []Content {
	query := util.TermSet(util.MeaningfulTerms(titleOrAngle))
	if len(query) == 0 {
		return nil
	}

	type scored struct {
		content Content
		score   float64
	}
	var matches []scored

	i.mu.RLock()
	for _, c := range i.items {
		score := i.similarity(query, c.Title)
		if s := i.similarity(query, c.Angle); s > score {
			score = s
		}
		if score > 0 {
			matches = append(matches, scored{content: c, score: score})
		}
	}
	i.mu.RUnlock()

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	out := make([]Content, len(matches))
	for n, m := range matches {
		out[n] = m.content
	}
	return out
}

// minSharedTerms is how many meaningful terms a published item must share with a title
const minSharedTerms = 2

// similarity is the overlap coefficient when it clears the threshold and at least
// minSharedTerms are shared; zero otherwise
func (i *Index) similarity(query map[string]bool, text string) float64 {
	terms := util.TermSet(util.MeaningfulTerms(text))
	if util.Shared(query, terms) < minSharedTerms {
		return 0
	}

	overlap := util.Overlap(query, terms)
	if overlap < i.threshold {
		return 0
	}
	return overlap
}
