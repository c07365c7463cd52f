package collector

import (
	"context"
	"errors"

	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// CacheStatsSource exposes object cache occupancy.
type CacheStatsSource interface {
	ObjectCount() (int, error)
	CacheMemoryBytes() (int64, error)
	CacheCapacity() (int, error)
}

// CacheCollector reports object cache occupancy.
type CacheCollector struct {
	src CacheStatsSource
}

// NewCacheCollector creates a cache statistics collector.
func NewCacheCollector(src CacheStatsSource) *CacheCollector {
	return &CacheCollector{src: src}
}

// Name implements Collector.
func (c *CacheCollector) Name() string { return "cache" }

// Collect implements Collector.
func (c *CacheCollector) Collect(ctx context.Context) (Result, error) {
	if c.src == nil {
		return Result{}, unavailable(c.Name(), errors.New("no database"))
	}

	objects, err := c.src.ObjectCount()
	if err != nil {
		return Result{}, unavailable(c.Name(), err)
	}
	memory, err := c.src.CacheMemoryBytes()
	if err != nil {
		return Result{}, unavailable(c.Name(), err)
	}
	capacity, err := c.src.CacheCapacity()
	if err != nil {
		return Result{}, unavailable(c.Name(), err)
	}

	return Result{Metrics: []exposition.Metric{
		gauge("objects_in_cache", "Objects held in the object caches, ghosts included.", objects),
		gauge("cache_memory_bytes", "Bytes of loaded object state held in the object caches.", memory),
		gauge("cache_capacity", "Target number of active objects per connection cache.", capacity),
	}}, nil
}
