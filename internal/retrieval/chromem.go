package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/ppiankov/beacon/internal/model"
)

// Metadata keys stored with every chunk
const (
	metaSourceFile  = "source_file"
	metaSourceType  = "source_type"
	metaCategory    = "category"
	metaAuthority   = "authority_tier"
	metaLastUpdated = "last_updated"
)

// ChromemStore is an in-process vector index backed by chromem-go
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the configured collection.
// A persistent database lives under cfg.Path unless cfg.InMemory is set.
func NewChromemStore(cfg model.VectorStoreConfig, embedder Embedder) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}

	var db *chromem.DB
	if cfg.InMemory || cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	}

	name := cfg.Collection
	if name == "" {
		name = "knowledge"
	}

	collection, err := db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &ChromemStore{db: db, collection: collection}, nil
}

// Upsert adds chunks to the index, embedding their text
func (s *ChromemStore) Upsert(ctx context.Context, chunks []model.DocumentChunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: chunkMetadata(c),
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Search implements VectorSearcher
func (s *ChromemStore) Search(ctx context.Context, query string, topK int, filters Filters) ([]Hit, error) {
	n := topK
	if count := s.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, map[string]string(filters), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Chunk:      resultChunk(r),
			Similarity: float64(r.Similarity),
		})
	}
	return hits, nil
}

func chunkMetadata(c model.DocumentChunk) map[string]string {
	meta := map[string]string{
		metaSourceFile: c.SourceFile,
		metaSourceType: c.SourceType,
		metaCategory:   c.Category,
		metaAuthority:  strconv.Itoa(int(ChunkAuthority(c))),
	}
	if !c.LastUpdated.IsZero() {
		meta[metaLastUpdated] = c.LastUpdated.UTC().Format(time.RFC3339)
	}
	return meta
}

func resultChunk(r chromem.Result) model.DocumentChunk {
	c := model.DocumentChunk{
		ID:         r.ID,
		Text:       r.Content,
		SourceFile: r.Metadata[metaSourceFile],
		SourceType: r.Metadata[metaSourceType],
		Category:   r.Metadata[metaCategory],
	}
	if tier, err := strconv.Atoi(r.Metadata[metaAuthority]); err == nil {
		c.Authority = model.AuthorityTier(tier)
	}
	if ts, err := time.Parse(time.RFC3339, r.Metadata[metaLastUpdated]); err == nil {
		c.LastUpdated = ts
	}
	return c
}
