// Package cache memoizes expensive reasoning results and coalesces concurrent computations.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Fingerprint hashes a normalized query together with its context.
// Queries differing only in case or punctuation share a fingerprint.
func Fingerprint(query string, context ...string) string {
	h := sha256.New()
	h.Write([]byte(util.Normalize(query)))
	for _, c := range context {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return "beacon-v1-" + hex.EncodeToString(h.Sum(nil))
}

// NewFromConfig builds the storage layer for a ResponseCache
func NewFromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return NopCache{}
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, cleanup)
	}
	return NewLayeredCache(cfg.MemoryTTL, cleanup, cfg.Dir, cfg.DiskTTL)
}

// NopCache stores nothing
type NopCache struct{}

func (NopCache) Get(string) ([]byte, bool)               { return nil, false }
func (NopCache) Set(string, []byte, time.Duration) error { return nil }
func (NopCache) Delete(string) error                     { return nil }
func (NopCache) Clear() error                            { return nil }
