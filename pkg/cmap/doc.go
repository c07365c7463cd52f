// Package cmap is a sharded map for registries that request goroutines
// write while scrapes read them.
//
// Keys are spread over a power-of-two number of shards with murmur3; each
// shard has its own RWMutex. Range, Keys and DeleteFunc visit one shard at a
// time, so they never observe the whole map at a single instant:
//
//	conns := cmap.New[int, *Conn]()
//	conns.Set(c.ID(), c)
//	conns.Range(func(id int, c *Conn) bool { ...; return true })
package cmap
