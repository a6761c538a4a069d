// Package store defines the key-value engine interface consumed by the
// request-region workers, along with an in-memory implementation. Keys are
// fixed-width 128-bit identifiers and values are fixed-size blobs, so the
// engine never allocates per operation on the hot path.
package store

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

const (
	// KeySize is the width of every key in bytes (128 bits).
	KeySize = 16

	// ValueSize is the width of every value in bytes.
	ValueSize = 32
)

// Key is a fixed-width 128-bit key. Immutable once issued by a client.
type Key [KeySize]byte

// Value is a fixed-size value blob.
type Value [ValueSize]byte

// KeyFromUint64 builds a key from a 64-bit seed, used by clients drawing
// keys from a bounded population. The seed occupies the low 8 bytes; the
// high 8 bytes are a mix of the seed so distinct seeds never collide on
// bucket hashing alone.
func KeyFromUint64(n uint64) Key {
	var k Key
	binary.LittleEndian.PutUint64(k[0:8], n)
	binary.LittleEndian.PutUint64(k[8:16], n*0x9e3779b97f4a7c15)
	return k
}

// BucketOf returns the hash bucket for a key. This is the engine's
// bucketing function: shard placement consumes the bucket, never the raw
// key, so every party that hashes a key must go through here.
func BucketOf(k Key) uint32 {
	h := fnv.New32a()
	h.Write(k[:])
	return h.Sum32()
}

// Store defines the interface for the key-value engine.
// All implementations must be thread-safe for concurrent access from
// multiple worker threads.
type Store interface {
	// Get retrieves the value for a key.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(key Key) (Value, error)

	// Put stores a value under the given key, overwriting any existing
	// value.
	Put(key Key, value Value) error

	// Stats returns engine statistics.
	Stats() Stats
}

// Stats contains statistics about the store
type Stats struct {
	Keys  int    // Number of keys
	Bytes int    // Total size of all values in bytes
	Gets  uint64 // Number of get operations served
	Puts  uint64 // Number of put operations served
}

// MemoryStore implements Store with in-memory storage.
// Uses sync.RWMutex for thread-safe concurrent access.
type MemoryStore struct {
	mu   sync.RWMutex  // Protects concurrent access
	data map[Key]Value // Key-value storage
	gets atomic.Uint64 // Get operation count
	puts atomic.Uint64 // Put operation count
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[Key]Value),
	}
}

// Get retrieves the value for a key. Values are fixed-size arrays, so the
// return is already a copy and callers cannot alias store memory.
func (m *MemoryStore) Get(key Key) (Value, error) {
	m.gets.Add(1)

	m.mu.RLock()
	value, exists := m.data[key]
	m.mu.RUnlock()

	if !exists {
		return Value{}, ErrKeyNotFound
	}
	return value, nil
}

// Put stores a value under the given key (idempotent overwrite).
func (m *MemoryStore) Put(key Key, value Value) error {
	m.puts.Add(1)

	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	return nil
}

// Stats returns engine statistics.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	keys := len(m.data)
	m.mu.RUnlock()

	return Stats{
		Keys:  keys,
		Bytes: keys * ValueSize,
		Gets:  m.gets.Load(),
		Puts:  m.puts.Load(),
	}
}
