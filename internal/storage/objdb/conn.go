package objdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/storage"
)

// ErrConnectionClosed is returned when a closed connection is used.
var ErrConnectionClosed = errors.New("connection closed")

// Conn is a database connection with its own object cache.
//
// A connection is meant to be used by one goroutine between Open and Close.
// Its statistics may be read concurrently by the collectors.
type Conn struct {
	db *DB
	id int

	mu      sync.Mutex
	open    bool
	cache   *objectCache
	pending map[domain.OID][]byte
	loads   int64
	stores  int64
}

func newConn(db *DB, id int) *Conn {
	return &Conn{
		db:      db,
		id:      id,
		open:    true,
		cache:   newObjectCache(),
		pending: make(map[domain.OID][]byte),
	}
}

func (c *Conn) reopen() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
}

// ID returns the connection id. Ids are stable for the lifetime of the
// connection, including while it sits idle in the pool.
func (c *Conn) ID() int {
	return c.id
}

// Get returns the state of oid, loading it from storage when it is not
// active in the cache.
func (c *Conn) Get(ctx context.Context, oid domain.OID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrConnectionClosed
	}
	if state, ok := c.pending[oid]; ok {
		return state, nil
	}
	if state, ok := c.cache.get(oid); ok {
		return state, nil
	}

	state, err := c.db.kv.Get(ctx, objectKey(oid))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrKeyNotFound):
			return nil, domain.ErrObjectNotFound.WithDetails(oid.String())
		case errors.Is(err, storage.ErrClosed):
			return nil, domain.ErrDatabaseClosed.WithCause(err)
		}
		return nil, fmt.Errorf("load %s: %w", oid, err)
	}
	c.loads++
	c.cache.set(oid, state)
	return state, nil
}

// Put stages a new state for oid. It becomes visible to other connections
// on Commit.
func (c *Conn) Put(oid domain.OID, state []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrConnectionClosed
	}
	state = bytes.Clone(state)
	if state == nil {
		state = []byte{}
	}
	c.pending[oid] = state
	c.cache.set(oid, state)
	return nil
}

// Commit writes staged states in one batch and invalidates the objects in
// every other connection cache.
func (c *Conn) Commit(ctx context.Context) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}

	oids := make([]domain.OID, 0, len(c.pending))
	entries := make([]storage.Entry, 0, len(c.pending))
	for oid, state := range c.pending {
		oids = append(oids, oid)
		entries = append(entries, storage.Entry{Key: objectKey(oid), Value: state})
	}

	if err := c.db.kv.Write(ctx, entries); err != nil {
		c.abortLocked()
		c.mu.Unlock()
		if errors.Is(err, storage.ErrClosed) {
			return domain.ErrDatabaseClosed.WithCause(err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	c.stores += int64(len(entries))
	clear(c.pending)
	c.mu.Unlock()

	// Other connection locks are taken one at a time and never while
	// holding c.mu.
	c.db.invalidate(c, oids)
	return nil
}

// Abort drops staged states.
func (c *Conn) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
}

func (c *Conn) abortLocked() {
	for oid := range c.pending {
		c.cache.ghost(oid)
	}
	clear(c.pending)
}

// TransferCounts returns the loads and stores since the connection was
// opened.
func (c *Conn) TransferCounts() (loads, stores int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads, c.stores
}

// Close aborts staged states, reports the transfer counts to the activity
// monitor, shrinks the cache and returns the connection to the pool.
func (c *Conn) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.abortLocked()
	loads, stores := c.loads, c.stores
	c.loads, c.stores = 0, 0
	target := c.db.cfg.CacheSize
	c.cache.shrink(target, 2*target)
	c.open = false
	c.mu.Unlock()

	if m := c.db.ActivityMonitor(); m != nil {
		m.ClosedConnection(loads, stores)
	}
	c.db.release(c)
	return nil
}

func (c *Conn) invalidate(oids []domain.OID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, oid := range oids {
		c.cache.ghost(oid)
	}
}

func (c *Conn) cacheStats() (active, total int, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.active, c.cache.total(), c.cache.bytes
}
