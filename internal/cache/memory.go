package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/partition"
)

// MemoryStore is an in-process Store: a set of LRU shards, each bounded to
// its share of the total capacity. Expired entries are dropped on read.
type MemoryStore struct {
	shards []*lruShard
	nowFn  func() time.Time
}

type lruShard struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

// NewMemoryStore creates a store holding at most about capacity entries.
func NewMemoryStore(capacity, shards int) *MemoryStore {
	if shards <= 0 {
		shards = partition.DefaultShards
	}
	if capacity < shards {
		capacity = shards
	}
	perShard := (capacity + shards - 1) / shards

	s := &MemoryStore{shards: make([]*lruShard, shards), nowFn: time.Now}
	for i := range s.shards {
		s.shards[i] = &lruShard{
			capacity: perShard,
			items:    make(map[string]*list.Element),
			order:    list.New(),
		}
	}
	return s
}

func (s *MemoryStore) shard(key string) *lruShard {
	return s.shards[partition.For(key, len(s.shards))]
}

// Get returns a copy of the entry. Expired entries are removed and reported absent.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry := elem.Value.(Entry)
	if entry.Expired(s.nowFn()) {
		delete(sh.items, key)
		sh.order.Remove(elem)
		return Entry{}, false, nil
	}
	sh.order.MoveToFront(elem)
	return cloneEntry(entry), true, nil
}

// Set stores entry, evicting the least recently used entry of its shard when full.
func (s *MemoryStore) Set(_ context.Context, entry Entry) error {
	entry = cloneEntry(entry)
	sh := s.shard(entry.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if elem, ok := sh.items[entry.Key]; ok {
		elem.Value = entry
		sh.order.MoveToFront(elem)
		return nil
	}

	if sh.order.Len() >= sh.capacity {
		if oldest := sh.order.Back(); oldest != nil {
			delete(sh.items, oldest.Value.(Entry).Key)
			sh.order.Remove(oldest)
		}
	}
	sh.items[entry.Key] = sh.order.PushFront(entry)
	return nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if elem, ok := sh.items[key]; ok {
		delete(sh.items, key)
		sh.order.Remove(elem)
	}
	return nil
}

// Flush removes every entry.
func (s *MemoryStore) Flush(context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[string]*list.Element)
		sh.order = list.New()
		sh.mu.Unlock()
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += sh.order.Len()
		sh.mu.Unlock()
	}
	return n
}

func cloneEntry(e Entry) Entry {
	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	e.Value = value
	return e
}
