// Package activity records per-connection load and store counts of the
// object database and answers bucketed queries over a trailing history.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// DefaultHistory is how long closed-connection records are kept.
const DefaultHistory = time.Hour

// compactMin is the number of expired records tolerated at the front of the
// log before it is compacted.
const compactMin = 1024

// Division is one bucket of an activity analysis.
type Division struct {
	Start       time.Time
	End         time.Time
	Loads       int64
	Stores      int64
	Connections int64
}

type closeEvent struct {
	at     time.Time
	loads  int64
	stores int64
}

// Monitor accumulates connection close events. The log is ordered by time;
// log[head:] holds the retained records.
type Monitor struct {
	mu      sync.Mutex
	history time.Duration
	log     []closeEvent
	head    int
	now     func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// NewMonitor creates a monitor keeping history worth of records.
func NewMonitor(history time.Duration, opts ...Option) *Monitor {
	if history <= 0 {
		history = DefaultHistory
	}
	m := &Monitor{
		history: history,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// History returns the retention of the monitor.
func (m *Monitor) History() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
}

// SetHistory changes the retention. Records older than the new retention
// are dropped immediately.
func (m *Monitor) SetHistory(history time.Duration) {
	if history <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = history
	m.trim(m.now())
}

// ClosedConnection records the transfer counts of a connection that was just
// returned to the pool.
func (m *Monitor) ClosedConnection(loads, stores int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// Keep the log sorted if the clock steps backwards.
	if n := len(m.log); n > m.head && now.Before(m.log[n-1].at) {
		now = m.log[n-1].at
	}
	m.log = append(m.log, closeEvent{at: now, loads: loads, stores: stores})
	m.trim(now)
}

// trim advances head past records older than the retention and compacts the
// log once the expired prefix outweighs the live part. Caller holds mu.
func (m *Monitor) trim(now time.Time) {
	cutoff := now.Add(-m.history)
	live := m.log[m.head:]
	if len(live) == 0 || !live[0].at.Before(cutoff) {
		return
	}
	m.head += sort.Search(len(live), func(i int) bool {
		return !live[i].at.Before(cutoff)
	})
	if m.head == len(m.log) {
		m.log = m.log[:0]
		m.head = 0
		return
	}
	if m.head >= compactMin && m.head >= len(m.log)-m.head {
		n := copy(m.log, m.log[m.head:])
		clear(m.log[n:])
		m.log = m.log[:n]
		m.head = 0
	}
}

// retained returns the number of live records. Caller holds mu.
func (m *Monitor) retained() int {
	return len(m.log) - m.head
}

// Analyze splits [start, end) into divisions equal buckets and sums the
// records of each. A zero end means now and a zero start means end minus the
// retention.
func (m *Monitor) Analyze(start, end time.Time, divisions int) ([]Division, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if end.IsZero() {
		end = m.now()
	}
	if start.IsZero() {
		start = end.Add(-m.history)
	}
	w := domain.ActivityWindow{Start: start, End: end, Divisions: divisions}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	width := w.Width() / time.Duration(divisions)
	if width <= 0 {
		return nil, domain.ErrInvalidWindow.WithDetails("window narrower than divisions")
	}

	res := make([]Division, divisions)
	for i := range res {
		res[i].Start = start.Add(time.Duration(i) * width)
		res[i].End = start.Add(time.Duration(i+1) * width)
	}
	res[divisions-1].End = end

	live := m.log[m.head:]
	first := sort.Search(len(live), func(i int) bool {
		return !live[i].at.Before(start)
	})
	for _, ev := range live[first:] {
		if !ev.at.Before(end) {
			break
		}
		d := int(ev.at.Sub(start) / width)
		if d >= divisions {
			d = divisions - 1
		}
		res[d].Loads += ev.loads
		res[d].Stores += ev.stores
		res[d].Connections++
	}
	return res, nil
}
