// Package objdb is a small object database layered on the KV engine.
//
// Clients open a connection from a bounded pool, load and store objects
// through the connection's object cache and close it again. On close the
// connection's load and store counts are handed to the activity monitor and
// its cache is shrunk back to the configured size by turning the least
// recently used objects into ghosts.
//
// The database also answers the runtime statistics read by the metrics
// collectors: cache occupancy, cache memory and per-connection cache detail.
package objdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/storage"
	"github.com/yndnr/plonemetrics-go/internal/storage/activity"
	"github.com/yndnr/plonemetrics-go/pkg/cmap"
)

// Default configuration values.
const (
	DefaultPoolSize  = 7
	DefaultCacheSize = 400
)

// Config configures a DB.
type Config struct {
	// PoolSize is the number of idle connections kept for reuse.
	PoolSize int

	// CacheSize is the target number of active objects per connection
	// cache. It is also reported as the cache capacity.
	CacheSize int

	// ActivityHistory is the retention of the activity monitor created by
	// GetOrCreateActivityMonitor when no factory is given.
	ActivityHistory time.Duration
}

// DefaultConfig returns the default DB configuration.
func DefaultConfig() Config {
	return Config{
		PoolSize:        DefaultPoolSize,
		CacheSize:       DefaultCacheSize,
		ActivityHistory: activity.DefaultHistory,
	}
}

// DB is the object database.
type DB struct {
	kv     storage.KVEngine
	cfg    Config
	logger *slog.Logger

	poolMu sync.Mutex
	idle   []*Conn
	nextID int

	// conns holds every connection that has not been discarded, open or
	// idle, keyed by connection id.
	conns *cmap.Map[int, *Conn]

	monitorMu sync.Mutex
	monitor   atomic.Pointer[activity.Monitor]

	closed atomic.Bool
}

// New creates a database on kv.
func New(kv storage.KVEngine, cfg Config, logger *slog.Logger) *DB {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.ActivityHistory <= 0 {
		cfg.ActivityHistory = activity.DefaultHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		kv:     kv,
		cfg:    cfg,
		logger: logger,
		conns:  cmap.New[int, *Conn](),
	}
}

// Open returns an idle connection from the pool or a new one.
func (db *DB) Open(ctx context.Context) (*Conn, error) {
	if db.closed.Load() {
		return nil, domain.ErrDatabaseClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.poolMu.Lock()
	defer db.poolMu.Unlock()

	if n := len(db.idle); n > 0 {
		c := db.idle[n-1]
		db.idle = db.idle[:n-1]
		c.reopen()
		return c, nil
	}

	c := newConn(db, db.nextID)
	db.nextID++
	db.conns.Set(c.id, c)
	return c, nil
}

// release returns c to the pool, or discards it when the pool is full.
func (db *DB) release(c *Conn) {
	db.poolMu.Lock()
	defer db.poolMu.Unlock()

	if db.closed.Load() || len(db.idle) >= db.cfg.PoolSize {
		db.conns.Delete(c.id)
		return
	}
	db.idle = append(db.idle, c)
}

// Load reads one object through a pooled connection.
func (db *DB) Load(ctx context.Context, oid domain.OID) ([]byte, error) {
	c, err := db.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Get(ctx, oid)
}

// Store writes one object through a pooled connection and commits it.
func (db *DB) Store(ctx context.Context, oid domain.OID, state []byte) error {
	c, err := db.Open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Put(oid, state); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// invalidate ghosts oids in every connection except origin.
func (db *DB) invalidate(origin *Conn, oids []domain.OID) {
	db.conns.Range(func(_ int, c *Conn) bool {
		if c != origin {
			c.invalidate(oids)
		}
		return true
	})
}

// GetOrCreateActivityMonitor returns the activity monitor, creating it with
// factory on first use. factory runs at most once per database even when
// several goroutines ask concurrently. A nil factory creates a monitor with
// the configured history.
func (db *DB) GetOrCreateActivityMonitor(factory func() *activity.Monitor) (*activity.Monitor, error) {
	if db.closed.Load() {
		return nil, domain.ErrDatabaseClosed
	}
	if m := db.monitor.Load(); m != nil {
		return m, nil
	}

	db.monitorMu.Lock()
	defer db.monitorMu.Unlock()

	if m := db.monitor.Load(); m != nil {
		return m, nil
	}

	var m *activity.Monitor
	if factory != nil {
		m = factory()
	}
	if m == nil {
		m = activity.NewMonitor(db.cfg.ActivityHistory)
	}
	db.monitor.Store(m)
	db.logger.Debug("activity monitor created", "history", m.History())
	return m, nil
}

// ActivityMonitor returns the monitor if one has been created.
func (db *DB) ActivityMonitor() *activity.Monitor {
	return db.monitor.Load()
}

// ObjectCount returns the number of objects held in all connection caches,
// ghosts included.
func (db *DB) ObjectCount() (int, error) {
	if db.closed.Load() {
		return 0, domain.ErrDatabaseClosed
	}
	total := 0
	db.conns.Range(func(_ int, c *Conn) bool {
		_, t, _ := c.cacheStats()
		total += t
		return true
	})
	return total, nil
}

// CacheMemoryBytes returns the size of the loaded object states held in all
// connection caches.
func (db *DB) CacheMemoryBytes() (int64, error) {
	if db.closed.Load() {
		return 0, domain.ErrDatabaseClosed
	}
	var total int64
	db.conns.Range(func(_ int, c *Conn) bool {
		_, _, b := c.cacheStats()
		total += b
		return true
	})
	return total, nil
}

// CacheCapacity returns the configured target size of a connection cache.
func (db *DB) CacheCapacity() (int, error) {
	if db.closed.Load() {
		return 0, domain.ErrDatabaseClosed
	}
	return db.cfg.CacheSize, nil
}

// CacheDetailSize returns the cache sizing of every connection. The order is
// unspecified.
func (db *DB) CacheDetailSize() ([]domain.ConnectionCacheDetail, error) {
	if db.closed.Load() {
		return nil, domain.ErrDatabaseClosed
	}
	details := make([]domain.ConnectionCacheDetail, 0, db.conns.Count())
	db.conns.Range(func(id int, c *Conn) bool {
		active, total, _ := c.cacheStats()
		details = append(details, domain.ConnectionCacheDetail{
			ConnectionID: id,
			Active:       active,
			Total:        total,
		})
		return true
	})
	return details, nil
}

// CountStored returns the number of objects in storage.
func (db *DB) CountStored(ctx context.Context) (int, error) {
	if db.closed.Load() {
		return 0, domain.ErrDatabaseClosed
	}
	n := 0
	err := db.kv.ScanKeys(ctx, keyPrefix, func(key []byte) bool {
		if _, ok := oidFromKey(key); ok {
			n++
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("scan objects: %w", err)
	}
	return n, nil
}

// Close marks the database closed. Open connections stay usable until they
// are closed but are not returned to the pool. The KV engine is left open.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return domain.ErrDatabaseClosed
	}
	db.poolMu.Lock()
	for _, c := range db.idle {
		db.conns.Delete(c.id)
	}
	db.idle = nil
	db.poolMu.Unlock()
	return nil
}
