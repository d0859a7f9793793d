package storage

import (
	"time"
)

// StoredValue is one key's payload together with its expiry metadata
type StoredValue struct {
	Value      string
	InsertedAt time.Time     // carries the monotonic clock reading of the write
	TTL        time.Duration // 0 means the value never expires
	Version    uint64        // store-wide write sequence, unique per Put
}

// ExpiredAt reports whether the value is logically expired at now
func (v StoredValue) ExpiredAt(now time.Time) bool {
	return v.TTL > 0 && !now.Before(v.InsertedAt.Add(v.TTL))
}

// Condition decides whether a conditional write may proceed given the current entry
type Condition func(cur StoredValue, ok bool) bool

// Storage is a common interface for working with key-value storages.
// Every method is atomic with respect to the others; no method evaluates expiry
type Storage interface {
	// Put unconditionally writes the value with a freshly stamped InsertedAt
	Put(key, value string, ttl time.Duration)

	// PutIf writes the value only if cond approves the current entry.
	// cond runs under the same lock as the write. Returns true if the write happened
	PutIf(key, value string, ttl time.Duration, cond Condition) bool

	// GetIfPresent returns the current entry as stored, expired or not
	GetIfPresent(key string) (StoredValue, bool)

	// Delete deletes the key. Returns true if the key existed and was deleted
	Delete(key string) bool

	// DeleteVersion deletes the key only if its entry still carries version.
	// Returns true if the key was deleted
	DeleteVersion(key string, version uint64) bool

	// Len returns the number of stored entries, including expired ones not yet evicted
	Len() int
}
