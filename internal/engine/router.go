package engine

import (
	"hash/fnv"
)

// Router spreads engine IDs over registry shards
type Router struct {
	shardCount int
}

// NewRouter creates a new router with the specified shard count
func NewRouter(shardCount int) *Router {
	if shardCount <= 0 {
		shardCount = 1
	}
	return &Router{
		shardCount: shardCount,
	}
}

// Route calculates the shard index for an engine ID
// Uses FNV-1a hash for stable, deterministic routing
func (r *Router) Route(engineID string) int {
	h := fnv.New32a()
	h.Write([]byte(engineID))
	return int(h.Sum32() % uint32(r.shardCount))
}
