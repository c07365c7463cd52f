package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Get for an absent key.
	ErrKeyNotFound = errors.New("storage: key not found")
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("storage: engine closed")
)

// KVEngine is the byte store under the object database. Implementations
// are safe for concurrent use.
type KVEngine interface {
	// Get returns a copy of the value under key, or ErrKeyNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Write applies every entry atomically. An entry with a nil Value
	// deletes its key.
	Write(ctx context.Context, entries []Entry) error

	// ScanKeys calls fn for each key with prefix, in key order, until fn
	// returns false. Values are not read.
	ScanKeys(ctx context.Context, prefix []byte, fn func(key []byte) bool) error

	// Stats reports storage sizes. It doubles as the readiness check.
	Stats(ctx context.Context) (*KVStats, error)

	Close() error
}

// Entry is one write of a batch.
type Entry struct {
	Key   []byte
	Value []byte
}

// KVStats describes the on-disk footprint.
type KVStats struct {
	LSMSize      int64
	ValueLogSize int64
	// LastGC is the end of the last value log GC, zero if none ran.
	LastGC     time.Time
	GCRewrites uint64
}

// TotalSize is the LSM plus value log size in bytes.
func (s *KVStats) TotalSize() int64 {
	return s.LSMSize + s.ValueLogSize
}

// KVConfig configures the Badger engine.
type KVConfig struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Badger   BadgerConfig
}

// BadgerConfig holds Badger tuning.
type BadgerConfig struct {
	// GCInterval between value log GC runs. Zero disables the loop.
	GCInterval time.Duration
	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio   float64
	BlockCacheSize   int64
	ValueLogFileSize int64
	SyncWrites       bool
}

// DefaultKVConfig returns an on-disk configuration rooted at dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir: dir,
		Badger: BadgerConfig{
			GCInterval:       10 * time.Minute,
			GCDiscardRatio:   0.5,
			BlockCacheSize:   64 << 20,
			ValueLogFileSize: 256 << 20,
		},
	}
}

// InMemoryKVConfig returns a configuration that keeps everything in memory.
func InMemoryKVConfig() KVConfig {
	cfg := DefaultKVConfig("")
	cfg.InMemory = true
	return cfg
}
