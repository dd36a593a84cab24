// Package seenset implements the dedup set of positions already admitted
// into the expansion pipeline. It shards its internal state across N
// mutex-guarded maps to reduce contention as worker concurrency grows.
package seenset

import (
	"hash/fnv"
	"sync"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

const defaultShards = 16

// Set is a concurrent set of domain.PositionKey.
type Set struct {
	shards []shard
}

type shard struct {
	mu   sync.Mutex
	seen map[domain.PositionKey]struct{}
}

// New returns an empty Set. shardCount <= 0 uses a sane default.
func New(shardCount int) *Set {
	if shardCount <= 0 {
		shardCount = defaultShards
	}
	s := &Set{shards: make([]shard, shardCount)}
	for i := range s.shards {
		s.shards[i].seen = make(map[domain.PositionKey]struct{})
	}
	return s
}

// InsertIfAbsent inserts key if not already present, returning true when the
// insert happened (i.e. the position had not been seen before). The set is
// never cleared during a run: a failed insert always means "already
// expanded, skip".
func (s *Set) InsertIfAbsent(key domain.PositionKey) bool {
	sh := &s.shards[s.shardFor(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.seen[key]; ok {
		return false
	}
	sh.seen[key] = struct{}{}
	return true
}

// Len returns the total number of distinct keys inserted, summed across
// shards. Intended for metrics/tests, not the hot path.
func (s *Set) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		total += len(s.shards[i].seen)
		s.shards[i].mu.Unlock()
	}
	return total
}

func (s *Set) shardFor(key domain.PositionKey) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return int(h.Sum32() % uint32(len(s.shards)))
}
