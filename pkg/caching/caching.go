// Package caching keeps raw marketplace responses on disk for a limited time,
// so repeated runs can re-render the README without hitting the API.
package caching

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Cache is a file-per-key cache with a TTL based on file modification time.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewCache creates the cache directory if needed.
// A ttl <= 0 means entries never expire.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// path returns a readable, collision-safe filename for key.
func (c *Cache) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	slug := strings.Trim(unsafeKeyChars.ReplaceAllString(key, "_"), "_")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s-%x.json", slug, hash[:6]))
}

// Get returns the cached body for key and true when present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	filePath := c.path(key)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data under key, replacing any previous entry.
func (c *Cache) Set(key string, data []byte) error {
	if err := os.WriteFile(c.path(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Delete drops the entry for key. Deleting a missing entry is not an error.
func (c *Cache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
