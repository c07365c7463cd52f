package objdb

import (
	"container/list"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// cacheEntry is one cached object. A nil state marks a ghost: the object is
// known to the connection but its state has been released.
type cacheEntry struct {
	oid   domain.OID
	state []byte
}

// objectCache is the per-connection object cache. Entries are kept in LRU
// order, most recently used at the front.
//
// Not safe for concurrent use; Conn serialises access.
type objectCache struct {
	lru     *list.List
	entries map[domain.OID]*list.Element
	active  int
	bytes   int64
}

func newObjectCache() *objectCache {
	return &objectCache{
		lru:     list.New(),
		entries: make(map[domain.OID]*list.Element),
	}
}

// get returns the state of oid and whether it is loaded. A ghost hit still
// counts as use.
func (c *objectCache) get(oid domain.OID) ([]byte, bool) {
	el, ok := c.entries[oid]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	return e.state, e.state != nil
}

// set stores state for oid, activating a ghost or adding a new entry.
func (c *objectCache) set(oid domain.OID, state []byte) {
	if el, ok := c.entries[oid]; ok {
		e := el.Value.(*cacheEntry)
		if e.state == nil {
			c.active++
		}
		c.bytes += int64(len(state)) - int64(len(e.state))
		e.state = state
		c.lru.MoveToFront(el)
		return
	}
	c.entries[oid] = c.lru.PushFront(&cacheEntry{oid: oid, state: state})
	c.active++
	c.bytes += int64(len(state))
}

// ghost releases the state of oid but keeps the entry.
func (c *objectCache) ghost(oid domain.OID) {
	el, ok := c.entries[oid]
	if !ok {
		return
	}
	c.deactivate(el.Value.(*cacheEntry))
}

func (c *objectCache) deactivate(e *cacheEntry) {
	if e.state == nil {
		return
	}
	c.active--
	c.bytes -= int64(len(e.state))
	e.state = nil
}

// shrink ghosts least recently used objects until at most target are active,
// then drops ghosts until at most limit entries remain.
func (c *objectCache) shrink(target, limit int) {
	for el := c.lru.Back(); el != nil && c.active > target; el = el.Prev() {
		c.deactivate(el.Value.(*cacheEntry))
	}
	for el := c.lru.Back(); el != nil && c.lru.Len() > limit; {
		prev := el.Prev()
		if e := el.Value.(*cacheEntry); e.state == nil {
			c.lru.Remove(el)
			delete(c.entries, e.oid)
		}
		el = prev
	}
}

func (c *objectCache) total() int {
	return c.lru.Len()
}
