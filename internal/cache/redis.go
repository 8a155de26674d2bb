package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes redis keys when none is configured.
const DefaultNamespace = "cache"

const flushBatch = 500

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	Namespace   string
	DialTimeout time.Duration
}

// RedisStore keeps entries in redis with native expiry so that replicas share
// one cache.
type RedisStore struct {
	store     cmdable
	raw       *redis.Client
	namespace string
}

// envelope is the stored form of an Entry.
type envelope struct {
	Value      json.RawMessage `json:"value"`
	ComputedAt time.Time       `json:"computed_at"`
	TTL        time.Duration   `json:"ttl"`
}

// NewRedisStore connects to redis and verifies connectivity.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	raw := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := newRedisStore(raw, opts.Namespace)
	s.raw = raw
	return s, nil
}

func newRedisStore(store cmdable, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{store: store, namespace: namespace}
}

func (s *RedisStore) key(key string) string {
	return s.namespace + ":" + key
}

// Get loads and decodes the envelope stored at key.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.store.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, false, fmt.Errorf("decoding redis entry %s: %w", key, err)
	}
	return Entry{Key: key, Value: []byte(env.Value), ComputedAt: env.ComputedAt, TTL: env.TTL}, true, nil
}

// Set writes the entry with a redis expiry equal to its TTL.
func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(envelope{
		Value:      json.RawMessage(entry.Value),
		ComputedAt: entry.ComputedAt,
		TTL:        entry.TTL,
	})
	if err != nil {
		return fmt.Errorf("encoding redis entry %s: %w", entry.Key, err)
	}
	if err := s.store.Set(ctx, s.key(entry.Key), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Flush deletes every key under the namespace.
func (s *RedisStore) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.store.Scan(ctx, cursor, s.namespace+":*", flushBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.store.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}
