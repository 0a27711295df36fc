package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
)

const DefaultTTL = 24 * time.Hour

// Redis is a JSON cache. When the server is unreachable at start it turns
// into a no-op, so callers never depend on it.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	warnedUnavailable atomic.Bool
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedis connects to opts.Addr. An empty address disables the cache.
func NewRedis(ctx context.Context, log *zap.Logger, opts Options) *Redis {
	log = logger.ForComponent(logger.OrNop(log), "cache")

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Redis{logger: log, prefix: opts.Prefix, ttl: ttl}

	if strings.TrimSpace(opts.Addr) == "" {
		log.Debug("no redis address configured, cache disabled")
		return r
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, bypassing cache", zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return r
	}

	r.client = client
	return r
}

func (r *Redis) Available() bool {
	return r != nil && r.client != nil
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// GetJSON decodes the cached value of key into out. It reports false on a
// miss or when the cache is disabled.
func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !r.Available() {
		return false, nil
	}

	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON stores value under key. A non-positive ttl uses the cache default.
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !r.Available() {
		return nil
	}
	if ttl <= 0 {
		ttl = r.ttl
	}

	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if !r.Available() {
		return nil
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Close() error {
	if !r.Available() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Warn("redis unavailable, bypassing cache", zap.Error(err))
	}
}
