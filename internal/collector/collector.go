// Package collector reads live runtime state from the object database and
// the Go runtime and turns it into exposition metrics.
//
// Every collector is independent. A collector that cannot read its source
// returns domain.ErrCollectionUnavailable and the scrape carries on without
// it. Collectors only read state, except that the activity collector creates
// the activity monitor on first use.
package collector

import (
	"context"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// Result is the output of one collector run.
type Result struct {
	Metrics []exposition.Metric

	// Comments is free text rendered as comment lines after the metrics.
	Comments string
}

// Collector produces metrics from one subsystem.
type Collector interface {
	Name() string
	Collect(ctx context.Context) (Result, error)
}

// Conditional is implemented by collectors that can be switched off at
// runtime. Disabled collectors are skipped without counting as failures.
type Conditional interface {
	Enabled() bool
}

func unavailable(collector string, cause error) error {
	return domain.ErrCollectionUnavailable.WithDetails(collector).WithCause(cause)
}

func gauge(name, help string, value any) exposition.Metric {
	return exposition.Metric{Name: name, Value: value, Kind: exposition.KindGauge, Help: help}
}

func counter(name, help string, value any) exposition.Metric {
	return exposition.Metric{Name: name, Value: value, Kind: exposition.KindCounter, Help: help}
}
