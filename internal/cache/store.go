package cache

import (
	"context"
	"time"
)

// Entry is one memoized result. Entries are replaced wholesale, never patched.
type Entry struct {
	Key        string
	Value      []byte
	ComputedAt time.Time
	TTL        time.Duration
}

// ExpiresAt is the instant after which the entry is stale.
func (e Entry) ExpiresAt() time.Time {
	return e.ComputedAt.Add(e.TTL)
}

// Expired reports whether now is past ComputedAt + TTL.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// Store is a cache backend. Get reports ok=false for absent keys; an error
// means the backend itself failed.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
}
