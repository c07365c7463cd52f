package collector

import (
	"context"
	"errors"
	"strconv"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// CacheDetailSource exposes per-connection cache sizing.
type CacheDetailSource interface {
	CacheDetailSize() ([]domain.ConnectionCacheDetail, error)
}

// ConnectionsCollector reports the cache of every connection, ordered by
// connection id. The position in that order is part of the metric name, so
// the set of names stays bounded by the peak number of live connections
// while discarded connections are replaced by fresh ids.
type ConnectionsCollector struct {
	src CacheDetailSource
}

// NewConnectionsCollector creates a connection cache detail collector.
func NewConnectionsCollector(src CacheDetailSource) *ConnectionsCollector {
	return &ConnectionsCollector{src: src}
}

// Name implements Collector.
func (c *ConnectionsCollector) Name() string { return "connections" }

// Collect implements Collector.
func (c *ConnectionsCollector) Collect(ctx context.Context) (Result, error) {
	if c.src == nil {
		return Result{}, unavailable(c.Name(), errors.New("no database"))
	}
	details, err := c.src.CacheDetailSize()
	if err != nil {
		return Result{}, unavailable(c.Name(), err)
	}

	details = domain.SortConnectionCacheDetails(details)
	metrics := make([]exposition.Metric, 0, 2*len(details))
	for i, d := range details {
		prefix := "zope_connection_" + strconv.Itoa(i)
		metrics = append(metrics,
			gauge(prefix+"_active_objects", "Active objects in the connection cache.", d.Active),
			gauge(prefix+"_total_objects", "Objects in the connection cache, ghosts included.", d.Total),
		)
	}
	return Result{Metrics: metrics}, nil
}
