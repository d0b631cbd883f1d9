package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const releaseCacheFile = "release_cache.json"

type releaseCacheEntry struct {
	Repo      string    `json:"repo"`
	TagName   string    `json:"tag_name"`
	HTMLURL   string    `json:"html_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ReleaseCache remembers the latest release lookup on disk for TTL. A zero
// TTL disables it. Read and write failures are treated as cache misses.
type ReleaseCache struct {
	Path string
	Repo string
	TTL  time.Duration

	now func() time.Time
}

// NewReleaseCache stores the cache file inside dir.
func NewReleaseCache(dir, repo string, ttl time.Duration) *ReleaseCache {
	return &ReleaseCache{
		Path: filepath.Join(dir, releaseCacheFile),
		Repo: repo,
		TTL:  ttl,
		now:  time.Now,
	}
}

func (c *ReleaseCache) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Get returns the cached release when present, for the same repo, and fresh.
func (c *ReleaseCache) Get() (Release, bool) {
	if c == nil || c.TTL <= 0 {
		return Release{}, false
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return Release{}, false
	}
	var entry releaseCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Release{}, false
	}
	if entry.Repo != c.Repo || entry.TagName == "" {
		return Release{}, false
	}
	if c.clock().Sub(entry.FetchedAt) > c.TTL {
		return Release{}, false
	}
	return Release{TagName: entry.TagName, HTMLURL: entry.HTMLURL}, true
}

// Put records rel as the latest release.
func (c *ReleaseCache) Put(rel Release) {
	if c == nil || c.TTL <= 0 {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(releaseCacheEntry{
		Repo:      c.Repo,
		TagName:   rel.TagName,
		HTMLURL:   rel.HTMLURL,
		FetchedAt: c.clock(),
	}, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(c.Path, data, 0o644)
}
