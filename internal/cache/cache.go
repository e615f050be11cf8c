// Package cache is a file-backed response cache with per-cache TTL.
// Entries are JSON envelopes keyed by the SHA-256 of the logical key, so
// arbitrary key strings map to safe filenames.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultTTL is the production freshness window.
	DefaultTTL = 5 * time.Minute
	// DevTTL is the relaxed freshness window for development mode.
	DevTTL = time.Hour
)

type envelope struct {
	Timestamp int64           `json:"timestamp"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
}

// Cache stores JSON payloads on disk with a freshness TTL. A disabled cache
// never stores and never returns hits, so callers need no special casing.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// New creates a cache rooted at dir. When enabled is false all operations
// are no-ops.
func New(dir string, ttl time.Duration, enabled bool) *Cache {
	return &Cache{dir: dir, ttl: ttl, enabled: enabled, now: time.Now}
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Enabled reports whether the cache stores and serves entries.
func (c *Cache) Enabled() bool { return c.enabled }

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached payload for key if present and fresh. An entry
// whose age equals or exceeds the TTL is treated as absent.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	if !c.enabled {
		return nil, false
	}
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	age := c.now().Unix() - env.Timestamp
	if age < 0 || time.Duration(age)*time.Second >= c.ttl {
		return nil, false
	}
	return env.Data, true
}

// Set stores a payload under key. Errors are swallowed: a cache write
// failing must never fail the operation that produced the data.
func (c *Cache) Set(key string, data json.RawMessage) {
	if !c.enabled {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	env := envelope{Timestamp: c.now().Unix(), Key: key, Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path(key), raw, 0o644)
}

// Invalidate removes the entry for key, reporting how many entries were
// removed (1 or 0).
func (c *Cache) Invalidate(key string) int {
	if os.Remove(c.path(key)) != nil {
		return 0
	}
	return 1
}

// InvalidateAll removes every entry and returns how many were removed.
func (c *Cache) InvalidateAll() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if os.Remove(filepath.Join(c.dir, entry.Name())) == nil {
			removed++
		}
	}
	return removed
}

// Stats describes the cache's current contents.
type Stats struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"`
	Entries int           `json:"entries"`
	Valid   int           `json:"valid"`
	Expired int           `json:"expired"`
}

// Stat walks the cache directory and classifies entries by freshness.
func (c *Cache) Stat() Stats {
	stats := Stats{Enabled: c.enabled, TTL: c.ttl}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats
	}
	now := c.now().Unix()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		stats.Entries++
		raw, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			stats.Expired++
			continue
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			stats.Expired++
			continue
		}
		age := now - env.Timestamp
		if age >= 0 && time.Duration(age)*time.Second < c.ttl {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// Cached runs fn through the cache: a fresh hit is decoded and returned,
// otherwise fn's result is stored under key before being returned. Errors
// from fn are never cached.
func Cached[T any](c *Cache, key string, fn func() (T, error)) (T, error) {
	if raw, ok := c.Get(key); ok {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
	}
	value, err := fn()
	if err != nil {
		return value, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	c.Set(key, raw)
	return value, nil
}
