package ai

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/records"
)

// Cache stores analyses as JSON.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Cached serves repeated analyses of unchanged inputs from a cache. Cache
// failures are logged and otherwise ignored.
type Cached struct {
	inner  Assistant
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(inner Assistant, cache Cache, ttl time.Duration, log *zap.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.ForComponent(logger.OrNop(log), "ai_cache"),
	}
}

func (c *Cached) AnalyzeMatch(ctx context.Context, candidate records.Profile, listing records.Listing) (*MatchAnalysis, error) {
	key, err := cacheKey("match", candidate, listing)
	if err != nil {
		return c.inner.AnalyzeMatch(ctx, candidate, listing)
	}

	var cached MatchAnalysis
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	result, err := c.inner.AnalyzeMatch(ctx, candidate, listing)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, result)
	return result, nil
}

func (c *Cached) ReviewCV(ctx context.Context, candidate records.Profile, cv string) (*CVReview, error) {
	key, err := cacheKey("cv", candidate, cv)
	if err != nil {
		return c.inner.ReviewCV(ctx, candidate, cv)
	}

	var cached CVReview
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	result, err := c.inner.ReviewCV(ctx, candidate, cv)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, result)
	return result, nil
}

func (c *Cached) lookup(ctx context.Context, key string, out any) bool {
	ok, err := c.cache.GetJSON(ctx, key, out)
	if err != nil {
		c.logger.Debug("cache lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if ok {
		c.logger.Debug("cache hit", zap.String("key", key))
	}
	return ok
}

func (c *Cached) store(ctx context.Context, key string, value any) {
	if err := c.cache.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Debug("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey hashes every input so edits to a profile or listing miss.
func cacheKey(kind string, inputs ...any) (string, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%x", kind, sum[:]), nil
}
