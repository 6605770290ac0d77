package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when Put or Coalesce is given no TTL
const DefaultTTL = time.Hour

// entry is the stored envelope. An entry older than its TTL is treated as absent
// whether or not the underlying store has evicted it yet.
type entry struct {
	Payload   []byte        `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// ResponseCache memoizes payloads by fingerprint and runs at most one
// computation per fingerprint at a time. Safe for concurrent use.
//
// Payloads returned to callers are shared; treat them as read-only.
type ResponseCache struct {
	store Cache
	group singleflight.Group
	now   func() time.Time
}

// NewResponseCache wraps a storage layer. A nil store caches nothing but still coalesces.
func NewResponseCache(store Cache) *ResponseCache {
	if store == nil {
		store = NopCache{}
	}
	return &ResponseCache{store: store, now: time.Now}
}

// Get returns the live payload for a fingerprint
func (c *ResponseCache) Get(fingerprint string) ([]byte, bool) {
	raw, ok := c.store.Get(fingerprint)
	if !ok {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = c.store.Delete(fingerprint)
		return nil, false
	}
	if e.expired(c.now()) {
		_ = c.store.Delete(fingerprint)
		return nil, false
	}
	return e.Payload, true
}

// Put stores a payload, replacing any previous entry for the fingerprint
func (c *ResponseCache) Put(fingerprint string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(entry{Payload: payload, CreatedAt: c.now(), TTL: ttl})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.store.Set(fingerprint, raw, ttl)
}

// Coalesce returns the cached payload or computes it. Concurrent callers with the
// same fingerprint share one computation of fn.
//
// The computation runs detached from the caller's cancellation: a caller whose ctx
// is done gets ctx.Err() immediately, while the computation continues and populates
// the cache for the next caller. fn must bound its own blocking calls.
// Errors are returned to every waiting caller and are not cached.
func (c *ResponseCache) Coalesce(ctx context.Context, fingerprint string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok := c.Get(fingerprint); ok {
		return payload, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		// A flight that finished just before this one may have filled the cache
		if payload, ok := c.Get(fingerprint); ok {
			return payload, nil
		}

		start := c.now()
		payload, err := fn(detached)
		if err != nil {
			return nil, err
		}
		if err := c.Put(fingerprint, payload, ttl); err != nil {
			log.Warn().
				Str("component", "cache").
				Str("fingerprint", fingerprint).
				Err(err).
				Msg("failed to store computed payload")
		}
		log.Debug().
			Str("component", "cache").
			Str("fingerprint", fingerprint).
			Dur("elapsed", c.now().Sub(start)).
			Msg("computed")
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// CoalesceJSON is Coalesce for values that round-trip through JSON
func CoalesceJSON[T any](ctx context.Context, c *ResponseCache, fingerprint string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	payload, err := c.Coalesce(ctx, fingerprint, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode cached payload: %w", err)
	}
	return out, nil
}
