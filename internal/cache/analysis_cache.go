// Package cache provides a redis-backed snapshot cache for completed
// analysis passes, keyed by symbol and interval.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-engine/internal/engine"
)

// ErrCacheMiss is returned when no snapshot exists for the key.
var ErrCacheMiss = errors.New("analysis cache miss")

// Snapshot is the cached result of one engine pass.
type Snapshot struct {
	Symbol    string          `json:"symbol"`
	Interval  string          `json:"interval"`
	Analysis  engine.Analysis `json:"analysis"`
	Signals   []engine.Signal `json:"signals"`
	CachedAt  int64           `json:"cached_at"`
	BarsCount int             `json:"bars_count"`
}

// AnalysisCache stores snapshots in redis with a TTL.
type AnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a cache over an existing redis client.
func New(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *AnalysisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AnalysisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "analysis_cache").Logger(),
	}
}

func cacheKey(symbol, interval string) string {
	return fmt.Sprintf("analysis:%s:%s", symbol, interval)
}

// Get fetches a snapshot, returning ErrCacheMiss when absent.
func (c *AnalysisCache) Get(ctx context.Context, symbol, interval string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, cacheKey(symbol, interval)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis cache: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}
	return &snap, nil
}

// Set stores a snapshot under the configured TTL.
func (c *AnalysisCache) Set(ctx context.Context, snap *Snapshot) error {
	snap.CachedAt = time.Now().UnixMilli()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode analysis snapshot: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(snap.Symbol, snap.Interval), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write analysis cache: %w", err)
	}

	c.logger.Debug().Str("symbol", snap.Symbol).Str("interval", snap.Interval).Msg("Analysis snapshot cached")
	return nil
}

// Invalidate drops the snapshot for a key.
func (c *AnalysisCache) Invalidate(ctx context.Context, symbol, interval string) error {
	if err := c.client.Del(ctx, cacheKey(symbol, interval)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate analysis cache: %w", err)
	}
	return nil
}
