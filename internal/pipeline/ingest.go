package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/retrieval"
)

// chunkFile is the ingestion export: YAML, or JSON (which parses as YAML)
type chunkFile struct {
	Chunks []chunkRecord `yaml:"chunks"`
}

type chunkRecord struct {
	ID          string `yaml:"id"`
	Text        string `yaml:"text"`
	SourceFile  string `yaml:"source_file"`
	SourceType  string `yaml:"source_type"`
	Category    string `yaml:"category"`
	Authority   int    `yaml:"authority_tier"`
	LastUpdated string `yaml:"last_updated"` // YYYY-MM-DD or RFC3339
}

// LoadChunks reads document chunks. Missing IDs become "<source_file>#<n>" and a
// missing authority tier is derived from the source type.
func LoadChunks(path string) ([]model.DocumentChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}

	var file chunkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse chunks %s: %w", path, err)
	}

	chunks := make([]model.DocumentChunk, 0, len(file.Chunks))
	for n, r := range file.Chunks {
		if strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("chunk %d: empty text", n)
		}
		if r.SourceFile == "" {
			return nil, fmt.Errorf("chunk %d: source_file is required", n)
		}

		c := model.DocumentChunk{
			ID:         r.ID,
			Text:       r.Text,
			SourceFile: r.SourceFile,
			SourceType: r.SourceType,
			Category:   r.Category,
			Authority:  model.AuthorityTier(r.Authority),
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s#%d", r.SourceFile, n)
		}
		c.Authority = retrieval.ChunkAuthority(c)

		if r.LastUpdated != "" {
			c.LastUpdated, err = parseDate(r.LastUpdated)
			if err != nil {
				return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Ingest loads a chunk file into the vector store
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	if p.Vectors == nil {
		return 0, ErrNoVectorStore
	}
	chunks, err := LoadChunks(path)
	if err != nil {
		return 0, err
	}
	if err := p.Vectors.Upsert(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid last_updated %q", s)
}
