package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pgxengine/core/internal/pgx"
)

// CacheConfig mirrors the Redis connection knobs the pipeline needs.
type CacheConfig struct {
	RedisURL    string
	PoolSize    int
	PoolTimeout time.Duration
	MaxRetries  int
	DefaultTTL  time.Duration
}

// CacheClient wraps a Redis client to idempotently cache pipeline
// responses by request fingerprint. It is purely an acceleration layer:
// the core itself persists nothing (§6), and a cache miss or Redis
// outage must never change the result, only its latency.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client.
func NewCacheClient(config CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// CachedRiskAssessment pairs a stored RiskAssessment with the window it
// remains valid for.
type CachedRiskAssessment struct {
	Assessment *pgx.RiskAssessment `json:"assessment"`
	CachedAt   time.Time           `json:"cached_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
}

// Fingerprint derives the idempotency key for one pipeline request:
// SHA-256 over drug, gene, and the sorted variant identity keys
// (chrom:pos:ref:alt). Zygosity, quality, filter, covered positions,
// population and genome build are not part of the key, so requests that
// differ only in those share a fingerprint.
func Fingerprint(drug, gene string, variants []pgx.Variant) string {
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		keys = append(keys, v.Key())
	}
	sort.Strings(keys)

	data := fmt.Sprintf("%s:%s:", drug, gene)
	for _, k := range keys {
		data += k + ";"
	}

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("riskassessment:%x", hash)
}

// GetRiskAssessment retrieves a cached assessment for a fingerprint.
func (c *CacheClient) GetRiskAssessment(ctx context.Context, fingerprint string) (*pgx.RiskAssessment, bool, error) {
	val, err := c.redis.Get(ctx, fingerprint).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get risk assessment cache: %w", err)
	}

	var cached CachedRiskAssessment
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, fingerprint)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, fingerprint)
		return nil, false, nil
	}

	return cached.Assessment, true, nil
}

// SetRiskAssessment caches an assessment under its request fingerprint.
func (c *CacheClient) SetRiskAssessment(ctx context.Context, fingerprint string, assessment *pgx.RiskAssessment, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedRiskAssessment{
		Assessment: assessment,
		CachedAt:   time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal risk assessment cache data: %w", err)
	}

	return c.redis.Set(ctx, fingerprint, jsonData, ttl).Err()
}

// Invalidate removes one cached assessment.
func (c *CacheClient) Invalidate(ctx context.Context, fingerprint string) error {
	return c.redis.Del(ctx, fingerprint).Err()
}

// GetStats returns cache statistics.
func (c *CacheClient) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.redis.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	keyspace, err := c.redis.Info(ctx, "keyspace").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis keyspace: %w", err)
	}

	return map[string]interface{}{
		"memory_info": info,
		"keyspace":    keyspace,
		"client_info": map[string]interface{}{
			"pool_stats": c.redis.PoolStats(),
		},
	}, nil
}

// Close closes the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// Ping checks if the Redis connection is alive.
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// FlushAll removes all cache entries (use with caution!).
func (c *CacheClient) FlushAll(ctx context.Context) error {
	return c.redis.FlushAll(ctx).Err()
}
