package storage

import (
	"errors"
	"hash/fnv"
	"math/bits"
	"sync/atomic"
	"time"
)

// MaxShards is the upper bound for ShardedMapStorage
const MaxShards = 64

var (
	ErrShardsNotPowerOfTwo = errors.New("requested shards must be a power of 2")
	ErrTooManyShards       = errors.New("requested shards must be less or equal than 64")
)

// ShardedMapStorage is a thread-safe key-value storage,
// divided into segments (shards) to reduce contention for locking
type ShardedMapStorage struct {
	shards    []*MapStorage
	shardMask uint32
}

// NewShardedMapStorage creates a new instance of ShardedMapStorage.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64.
func NewShardedMapStorage(requestedShards uint) (*ShardedMapStorage, error) {
	return newShardedMapStorage(requestedShards, time.Now)
}

func newShardedMapStorage(requestedShards uint, clock func() time.Time) (*ShardedMapStorage, error) {
	if err := ValidateShards(requestedShards); err != nil {
		return nil, err
	}

	s := &ShardedMapStorage{
		shards:    make([]*MapStorage, requestedShards),
		shardMask: uint32(requestedShards - 1),
	}

	// versions stay unique across shards
	seq := new(atomic.Uint64)
	for i := range s.shards {
		s.shards[i] = newMapStorage(seq, clock)
	}

	return s, nil
}

// ValidateShards reports whether n is an acceptable shard count
func ValidateShards(n uint) error {
	if bits.OnesCount(n) != 1 {
		return ErrShardsNotPowerOfTwo
	}
	if n > MaxShards {
		return ErrTooManyShards
	}
	return nil
}

// getShardIndex returns index of shard by key
func (s *ShardedMapStorage) getShardIndex(key string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(key)) //nolint:errcheck

	return hash.Sum32() & s.shardMask
}

func (s *ShardedMapStorage) shard(key string) *MapStorage {
	return s.shards[s.getShardIndex(key)]
}

func (s *ShardedMapStorage) Put(key, value string, ttl time.Duration) {
	s.shard(key).Put(key, value, ttl)
}

func (s *ShardedMapStorage) PutIf(key, value string, ttl time.Duration, cond Condition) bool {
	return s.shard(key).PutIf(key, value, ttl, cond)
}

func (s *ShardedMapStorage) GetIfPresent(key string) (StoredValue, bool) {
	return s.shard(key).GetIfPresent(key)
}

func (s *ShardedMapStorage) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

func (s *ShardedMapStorage) DeleteVersion(key string, version uint64) bool {
	return s.shard(key).DeleteVersion(key, version)
}

// Len sums shard sizes. Shards are locked one at a time, so the result is not a snapshot
func (s *ShardedMapStorage) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}
