package partition

import "hash/fnv"

// DefaultShards is the shard count used when a caller passes n <= 0.
const DefaultShards = 16

// For returns the shard index in [0, n) for key.
// Stable and deterministic: the same key always maps to the same shard.
func For(key string, n int) int {
	if n <= 0 {
		n = DefaultShards
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
