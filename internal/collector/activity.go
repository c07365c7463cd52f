package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/storage/activity"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// ActivitySource hands out the activity monitor of a database, creating it
// with factory on first use.
type ActivitySource interface {
	GetOrCreateActivityMonitor(factory func() *activity.Monitor) (*activity.Monitor, error)
}

type activityWindow struct {
	width     time.Duration
	divisions int
}

// ActivityCollector reports load and store activity over a trailing window.
//
// The window should match the scrape interval. A shorter window misses
// activity between scrapes and a longer one counts it more than once.
type ActivityCollector struct {
	src     ActivitySource
	window  atomic.Pointer[activityWindow]
	factory func() *activity.Monitor
	now     func() time.Time
}

// ActivityOption configures an ActivityCollector.
type ActivityOption func(*ActivityCollector)

// WithWindow sets the window width and the number of divisions.
func WithWindow(width time.Duration, divisions int) ActivityOption {
	return func(c *ActivityCollector) {
		c.SetWindow(width, divisions)
	}
}

// WithMonitorFactory sets the factory used when the database has no monitor
// yet. A nil factory leaves the choice to the database.
func WithMonitorFactory(factory func() *activity.Monitor) ActivityOption {
	return func(c *ActivityCollector) {
		c.factory = factory
	}
}

// WithActivityClock replaces the wall clock.
func WithActivityClock(now func() time.Time) ActivityOption {
	return func(c *ActivityCollector) {
		c.now = now
	}
}

// NewActivityCollector creates an activity collector with the default
// 15 second, single division window.
func NewActivityCollector(src ActivitySource, opts ...ActivityOption) *ActivityCollector {
	c := &ActivityCollector{
		src: src,
		now: time.Now,
	}
	c.SetWindow(domain.DefaultActivityWindow, domain.DefaultActivityDivisions)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetWindow changes the window for subsequent scrapes. Non-positive values
// fall back to the defaults.
func (c *ActivityCollector) SetWindow(width time.Duration, divisions int) {
	if width <= 0 {
		width = domain.DefaultActivityWindow
	}
	if divisions < 1 {
		divisions = domain.DefaultActivityDivisions
	}
	c.window.Store(&activityWindow{width: width, divisions: divisions})
}

// Window returns the current window width and divisions.
func (c *ActivityCollector) Window() (time.Duration, int) {
	w := c.window.Load()
	return w.width, w.divisions
}

// Name implements Collector.
func (c *ActivityCollector) Name() string { return "activity" }

// Collect implements Collector. Only the first division is reported.
func (c *ActivityCollector) Collect(ctx context.Context) (Result, error) {
	if c.src == nil {
		return Result{}, unavailable(c.Name(), errors.New("no database"))
	}

	monitor, err := c.src.GetOrCreateActivityMonitor(c.factory)
	if err != nil {
		return Result{}, unavailable(c.Name(), err)
	}
	if monitor == nil {
		return Result{}, unavailable(c.Name(), errors.New("no activity monitor"))
	}

	width, divisions := c.Window()
	w := domain.TrailingWindow(c.now(), width, divisions)
	divs, err := monitor.Analyze(w.Start, w.End, w.Divisions)
	if err != nil {
		return Result{}, unavailable(c.Name(), domain.ErrUpstreamQueryFailure.WithCause(err))
	}
	if len(divs) == 0 {
		return Result{}, unavailable(c.Name(),
			domain.ErrUpstreamQueryFailure.WithDetails("empty analysis"))
	}

	first := divs[0]
	return Result{Metrics: []exposition.Metric{
		gauge("connections", "Connections closed during the activity window.", first.Connections),
		counter("load_count", "Objects loaded during the activity window.", first.Loads),
		counter("store_count", "Objects stored during the activity window.", first.Stores),
	}}, nil
}
