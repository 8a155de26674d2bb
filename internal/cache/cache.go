package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// Options configures a Cache.
type Options struct {
	Enabled bool
	Metrics *Metrics
	NowFn   func() time.Time
}

// Cache memoizes computed results in a Store. It is safe for concurrent use;
// concurrent misses on the same key may both compute.
type Cache struct {
	store   Store
	enabled bool
	metrics *Metrics
	nowFn   func() time.Time
}

// New wraps store. A nil store disables caching.
func New(store Store, opts Options) *Cache {
	nowFn := opts.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache{
		store:   store,
		enabled: opts.Enabled && store != nil,
		metrics: opts.Metrics,
		nowFn:   nowFn,
	}
}

// Enabled reports whether lookups reach the store.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Flush removes every entry from the backend.
func (c *Cache) Flush(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	if err := c.store.Flush(ctx); err != nil {
		return err
	}
	slog.Info("[Cache] Flushed")
	return nil
}

// Ping checks the backend. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Ping(ctx)
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result for ttl. Values are returned decoded from their stored encoding,
// so a miss and a later hit yield identical payloads. Backend failures are
// logged and never mask the computed value; compute errors are returned as
// is and nothing is stored.
func GetOrCompute[V any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	identity := identityOf(key)

	if !c.Enabled() || ttl <= 0 {
		var m *Metrics
		if c != nil {
			m = c.metrics
		}
		m.lookup(identity, ResultBypass)
		return compute(ctx)
	}

	if v, ok := c.lookup(ctx, key); ok {
		var out V
		err := json.Unmarshal(v, &out)
		if err == nil {
			c.metrics.lookup(identity, ResultHit)
			return out, nil
		}
		slog.Warn("[Cache] Discarding undecodable entry", "key", key, "error", err)
		c.metrics.storeError("decode")
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("[Cache] Store delete failed", "key", key, "error", err)
		}
	}
	c.metrics.lookup(identity, ResultMiss)

	started := time.Now()
	value, err := compute(ctx)
	c.metrics.observeCompute(identity, time.Since(started))
	if err != nil {
		var zero V
		return zero, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("[Cache] Encoding result failed", "key", key, "error", err)
		c.metrics.storeError("encode")
		return value, nil
	}

	entry := Entry{Key: key, Value: data, ComputedAt: c.nowFn(), TTL: ttl}
	if err := c.store.Set(ctx, entry); err != nil {
		slog.Warn("[Cache] Store write failed", "key", key, "error", err)
		c.metrics.storeError("set")
	}

	var out V
	if err := json.Unmarshal(data, &out); err != nil {
		return value, nil
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("[Cache] Store read failed", "key", key, "error", err)
			c.metrics.storeError("get")
		}
		return nil, false
	}
	if !ok || entry.Expired(c.nowFn()) {
		return nil, false
	}
	return entry.Value, true
}
