// Package cache stores completed ranking results in Redis so repeat passes
// over an unchanged source file can skip the scan entirely. The key is
// derived from the source path, size, and mtime, so any modification to the
// file misses naturally.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/BobTheBot988/streamtop/internal/ingest"
	"github.com/BobTheBot988/streamtop/pkg/config"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	pkgredis "github.com/BobTheBot988/streamtop/pkg/redis"
)

const keyPrefix = "rank:"

// ResultCache caches ranked results per source fingerprint.
type ResultCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a ResultCache backed by the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *ResultCache {
	return &ResultCache{
		client: client,
		cfg:    cfg,
		logger: logger.Component("result-cache"),
	}
}

// GetOrCompute returns the cached results for (path, k), computing and
// storing them on a miss. Concurrent callers for the same key share one
// computation. The second return value reports whether the result came from
// the cache.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	path string,
	k int,
	computeFn func() ([]ingest.RankedLine, error),
) ([]ingest.RankedLine, bool, error) {
	key, err := c.buildKey(path, k)
	if err != nil {
		// Unfingerprintable source; rank without caching.
		results, err := computeFn()
		return results, false, err
	}

	if results, ok := c.get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.get(ctx, key); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ingest.RankedLine), false, nil
}

// Stats returns the hit and miss counts since construction.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) get(ctx context.Context, key string) ([]ingest.RankedLine, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNil(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var results []ingest.RankedLine
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key, "results", len(results))
	return results, true
}

func (c *ResultCache) set(ctx context.Context, key string, results []ingest.RankedLine) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// buildKey fingerprints the source file so a changed file never serves
// stale results.
func (c *ResultCache) buildKey(path string, k int) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	raw := fmt.Sprintf("%s|%d|%d|k=%d", path, info.Size(), info.ModTime().UnixNano(), k)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16]), nil
}
