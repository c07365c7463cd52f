package collector

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/inflight"
)

// RequestContextLocator finds the request a goroutine is serving.
type RequestContextLocator interface {
	Lookup(gid uint64) (domain.RequestInfo, bool)
}

// Switchable is implemented by locators that only track requests while
// enabled.
type Switchable interface {
	SetEnabled(on bool)
}

const maxStackDump = 64 << 20

// ThreadsCollector dumps the stack of every goroutine except the one running
// the scrape. It is disabled until SetEnabled(true).
type ThreadsCollector struct {
	locator RequestContextLocator
	enabled atomic.Bool
	now     func() time.Time
	dump    func() []byte
}

// NewThreadsCollector creates a disabled goroutine dump collector. locator
// may be nil, in which case no request information is attached.
func NewThreadsCollector(locator RequestContextLocator) *ThreadsCollector {
	return &ThreadsCollector{
		locator: locator,
		now:     time.Now,
		dump:    allStacks,
	}
}

// SetEnabled switches the dump on or off, together with the locator when it
// supports switching.
func (c *ThreadsCollector) SetEnabled(on bool) {
	c.enabled.Store(on)
	if s, ok := c.locator.(Switchable); ok {
		s.SetEnabled(on)
	}
}

// Enabled implements Conditional.
func (c *ThreadsCollector) Enabled() bool {
	return c.enabled.Load()
}

// Name implements Collector.
func (c *ThreadsCollector) Name() string { return "threads" }

// Collect implements Collector.
func (c *ThreadsCollector) Collect(ctx context.Context) (Result, error) {
	self := inflight.CurrentGoroutineID()
	all := ParseStackDump(c.dump())

	snaps := make([]domain.ThreadSnapshot, 0, len(all))
	for _, s := range all {
		if s.ID == self {
			continue
		}
		if c.locator != nil {
			if info, ok := c.locator.Lookup(s.ID); ok {
				s.Request = &info
			}
		}
		snaps = append(snaps, s)
	}

	// The total counts the scraping goroutine; only the dump leaves it out.
	return Result{
		Metrics: []exposition.Metric{
			gauge("zope_total_threads", "Goroutines alive at scrape time, the scraping one included.", len(all)),
		},
		Comments: RenderThreadDump(c.now(), snaps),
	}, nil
}

// RenderThreadDump renders snapshots as plain text, one block per goroutine.
func RenderThreadDump(at time.Time, snaps []domain.ThreadSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Threads traceback dump at %s\n", at.Format(time.RFC3339))
	for _, s := range snaps {
		b.WriteByte('\n')
		if s.Request != nil {
			fmt.Fprintf(&b, "Thread %d (%s):\n", s.ID, s.Request)
		} else {
			fmt.Fprintf(&b, "Thread %d [%s]:\n", s.ID, s.State)
		}
		b.WriteString(s.Stack)
		if !strings.HasSuffix(s.Stack, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ParseStackDump splits runtime.Stack(buf, true) output into snapshots.
func ParseStackDump(dump []byte) []domain.ThreadSnapshot {
	var snaps []domain.ThreadSnapshot
	for _, block := range bytes.Split(bytes.TrimSpace(dump), []byte("\n\n")) {
		header, stack, _ := bytes.Cut(block, []byte("\n"))
		id := inflight.ParseGoroutineID(header)
		if id == 0 {
			continue
		}
		state := ""
		if open := bytes.IndexByte(header, '['); open >= 0 {
			if end := bytes.LastIndexByte(header, ']'); end > open {
				state = string(header[open+1 : end])
			}
		}
		snaps = append(snaps, domain.ThreadSnapshot{
			ID:    id,
			State: state,
			Stack: string(stack),
		})
	}
	return snaps
}

func allStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxStackDump {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
