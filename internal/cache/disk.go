package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// defaultDiskTTL applies when neither the entry nor the cache sets one
const defaultDiskTTL = 24 * time.Hour

// DiskCache keeps one JSON file per key so cached reports survive restarts
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache stores entries under dir; ttl <= 0 means a day
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	if ttl <= 0 {
		ttl = defaultDiskTTL
	}
	return &DiskCache{dir: dir, ttl: ttl}
}

// diskEntry is the on-disk form. Key guards against two keys sanitising to one file.
type diskEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e diskEntry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Get returns the stored value. Expired or unreadable entries are removed and count as misses.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	file := c.file(key)
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	var e diskEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.expired(time.Now()) {
		_ = os.Remove(file)
		return nil, false
	}
	if e.Key != key {
		return nil, false
	}
	return e.Data, true
}

// Set writes value for key; ttl <= 0 uses the cache TTL
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := time.Now()
	raw, err := json.Marshal(diskEntry{Key: key, Data: value, StoredAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.writeAtomic(c.file(key), raw)
}

// writeAtomic writes through a temp file and rename so readers never see a partial entry
func (c *DiskCache) writeAtomic(file string, raw []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.file(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

var unsafeKeyChars = strings.NewReplacer("/", "_", `\`, "_", ":", "_")

func (c *DiskCache) file(key string) string {
	return filepath.Join(c.dir, unsafeKeyChars.Replace(key)+".cache")
}
