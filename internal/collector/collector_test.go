package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/storage/activity"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/inflight"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCache struct {
	objects  int
	memory   int64
	capacity int
	err      error
}

func (f *fakeCache) ObjectCount() (int, error)        { return f.objects, f.err }
func (f *fakeCache) CacheMemoryBytes() (int64, error) { return f.memory, f.err }
func (f *fakeCache) CacheCapacity() (int, error)      { return f.capacity, f.err }

type fakeActivity struct {
	monitor *activity.Monitor
	err     error
	calls   int
}

func (f *fakeActivity) GetOrCreateActivityMonitor(factory func() *activity.Monitor) (*activity.Monitor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.monitor == nil && factory != nil {
		f.monitor = factory()
	}
	return f.monitor, nil
}

type fakeDetail struct {
	details []domain.ConnectionCacheDetail
	err     error
}

func (f *fakeDetail) CacheDetailSize() ([]domain.ConnectionCacheDetail, error) {
	return f.details, f.err
}

func values(t *testing.T, res Result) map[string]string {
	t.Helper()
	out := make(map[string]string, len(res.Metrics))
	for _, m := range res.Metrics {
		v, err := exposition.FormatValue(m.Value)
		if err != nil {
			t.Fatalf("%s: %v", m.Name, err)
		}
		out[m.Name] = v
	}
	return out
}

func TestCacheCollector(t *testing.T) {
	c := NewCacheCollector(&fakeCache{objects: 120, memory: 4096, capacity: 1000})
	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	got := values(t, res)
	want := map[string]string{
		"objects_in_cache":   "120",
		"cache_memory_bytes": "4096",
		"cache_capacity":     "1000",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	for _, m := range res.Metrics {
		if m.Kind != exposition.KindGauge {
			t.Errorf("%s kind = %v, want gauge", m.Name, m.Kind)
		}
	}
}

func TestCacheCollector_Unavailable(t *testing.T) {
	for name, c := range map[string]*CacheCollector{
		"nil source": NewCacheCollector(nil),
		"closed db":  NewCacheCollector(&fakeCache{err: domain.ErrDatabaseClosed}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Collect(context.Background())
			if !errors.Is(err, domain.ErrCollectionUnavailable) {
				t.Errorf("Collect() error = %v, want ErrCollectionUnavailable", err)
			}
		})
	}
}

func TestActivityCollector(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	monitor := activity.NewMonitor(time.Hour, activity.WithClock(func() time.Time { return now.Add(-5 * time.Second) }))
	for i := 0; i < 5; i++ {
		monitor.ClosedConnection(8, 0)
	}
	monitor.ClosedConnection(2, 3)

	src := &fakeActivity{monitor: monitor}
	c := NewActivityCollector(src, WithActivityClock(clock))

	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := values(t, res)
	if got["connections"] != "6" || got["load_count"] != "42" || got["store_count"] != "3" {
		t.Errorf("metrics = %v, want connections=6 load_count=42 store_count=3", got)
	}

	kinds := map[string]exposition.Kind{}
	for _, m := range res.Metrics {
		kinds[m.Name] = m.Kind
	}
	if kinds["connections"] != exposition.KindGauge || kinds["load_count"] != exposition.KindCounter {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestActivityCollector_UsesFactory(t *testing.T) {
	created := 0
	src := &fakeActivity{}
	c := NewActivityCollector(src, WithMonitorFactory(func() *activity.Monitor {
		created++
		return activity.NewMonitor(time.Minute)
	}))

	for i := 0; i < 3; i++ {
		if _, err := c.Collect(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if created != 1 {
		t.Errorf("factory called %d times, want 1", created)
	}
	if src.calls != 3 {
		t.Errorf("source asked %d times, want 3", src.calls)
	}
}

func TestActivityCollector_Window(t *testing.T) {
	c := NewActivityCollector(&fakeActivity{})
	if w, d := c.Window(); w != 15*time.Second || d != 1 {
		t.Errorf("default window = (%v, %d)", w, d)
	}
	c.SetWindow(time.Minute, 4)
	if w, d := c.Window(); w != time.Minute || d != 4 {
		t.Errorf("window = (%v, %d)", w, d)
	}
	c.SetWindow(-1, 0)
	if w, d := c.Window(); w != 15*time.Second || d != 1 {
		t.Errorf("invalid window not reset to defaults: (%v, %d)", w, d)
	}
}

func TestActivityCollector_Failures(t *testing.T) {
	t.Run("source error", func(t *testing.T) {
		c := NewActivityCollector(&fakeActivity{err: domain.ErrDatabaseClosed})
		_, err := c.Collect(context.Background())
		if !errors.Is(err, domain.ErrCollectionUnavailable) || !errors.Is(err, domain.ErrDatabaseClosed) {
			t.Errorf("Collect() error = %v", err)
		}
	})

	t.Run("query failure", func(t *testing.T) {
		src := &fakeActivity{monitor: activity.NewMonitor(time.Hour)}
		c := NewActivityCollector(src, WithWindow(time.Nanosecond, 2))
		_, err := c.Collect(context.Background())
		if !errors.Is(err, domain.ErrCollectionUnavailable) {
			t.Errorf("Collect() error = %v, want ErrCollectionUnavailable", err)
		}
		if !errors.Is(err, domain.ErrUpstreamQueryFailure) {
			t.Errorf("Collect() error = %v, want ErrUpstreamQueryFailure in chain", err)
		}
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewActivityCollector(nil).Collect(context.Background())
		if !errors.Is(err, domain.ErrCollectionUnavailable) {
			t.Errorf("Collect() error = %v", err)
		}
	})
}

func TestConnectionsCollector_Sorted(t *testing.T) {
	src := &fakeDetail{details: []domain.ConnectionCacheDetail{
		{ConnectionID: 3, Active: 1, Total: 2},
		{ConnectionID: 1, Active: 0, Total: 50},
		{ConnectionID: 2, Active: 5, Total: 5},
	}}
	res, err := NewConnectionsCollector(src).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, m := range res.Metrics {
		names = append(names, m.Name)
	}
	want := []string{
		"zope_connection_0_active_objects", "zope_connection_0_total_objects",
		"zope_connection_1_active_objects", "zope_connection_1_total_objects",
		"zope_connection_2_active_objects", "zope_connection_2_total_objects",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", names, want)
	}

	got := values(t, res)
	if got["zope_connection_0_active_objects"] != "0" || got["zope_connection_0_total_objects"] != "50" {
		t.Errorf("lowest connection = %v", got)
	}
	if got["zope_connection_2_active_objects"] != "1" || got["zope_connection_2_total_objects"] != "2" {
		t.Errorf("highest connection = %v", got)
	}
}

func TestConnectionsCollector_BoundedNames(t *testing.T) {
	// Pool of 2: each round opens 4 connections, the 2 beyond the pool are
	// discarded on close and replaced by fresh ids in the next round.
	const poolSize, concurrent, rounds = 2, 4, 5
	nextID := 0
	var pooled []int
	src := &fakeDetail{}
	c := NewConnectionsCollector(src)

	seen := make(map[string]bool)
	for r := 0; r < rounds; r++ {
		live := append([]int(nil), pooled...)
		for len(live) < concurrent {
			live = append(live, nextID)
			nextID++
		}
		src.details = src.details[:0]
		for _, id := range live {
			src.details = append(src.details, domain.ConnectionCacheDetail{ConnectionID: id, Active: 1, Total: 1})
		}

		res, err := c.Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range res.Metrics {
			seen[m.Name] = true
		}
		pooled = live[:poolSize]
	}

	if nextID <= concurrent {
		t.Fatalf("only %d connection ids used, overflow not exercised", nextID)
	}
	if len(seen) != 2*concurrent {
		t.Errorf("distinct names = %d, want %d", len(seen), 2*concurrent)
	}
}

func TestConnectionsCollector_Empty(t *testing.T) {
	res, err := NewConnectionsCollector(&fakeDetail{}).Collect(context.Background())
	if err != nil || len(res.Metrics) != 0 {
		t.Errorf("Collect() = (%v, %v), want no metrics", res.Metrics, err)
	}

	_, err = NewConnectionsCollector(&fakeDetail{err: fmt.Errorf("boom")}).Collect(context.Background())
	if !errors.Is(err, domain.ErrCollectionUnavailable) {
		t.Errorf("Collect() error = %v", err)
	}
}

func TestThreadsCollector(t *testing.T) {
	self := inflight.CurrentGoroutineID()
	dump := fmt.Sprintf(`goroutine %d [running]:
main.scrape()
	/app/scrape.go:10 +0x1

goroutine 7 [IO wait]:
net.(*conn).Read()
	/go/net.go:1

goroutine 9 [select]:
main.worker()
	/app/worker.go:3
`, self)

	reg := inflight.New()
	c := NewThreadsCollector(reg)
	c.dump = func() []byte { return []byte(dump) }
	c.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }

	if c.Enabled() || reg.Enabled() {
		t.Fatal("threads collector must start disabled")
	}
	c.SetEnabled(true)
	if !reg.Enabled() {
		t.Fatal("SetEnabled must switch the locator on")
	}

	loc := &fakeLocator{reqs: map[uint64]domain.RequestInfo{
		7: {Method: "GET", Path: "/objects/1", Query: "a=b"},
	}}
	c.locator = loc

	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := values(t, res)["zope_total_threads"]; got != "3" {
		t.Errorf("zope_total_threads = %s, want 3 with the scraping goroutine", got)
	}

	want := []string{
		"Threads traceback dump at 2026-05-01T10:00:00Z",
		"Thread 7 (GET /objects/1?a=b):",
		"Thread 9 [select]:",
		"\t/app/worker.go:3",
	}
	for _, w := range want {
		if !strings.Contains(res.Comments, w) {
			t.Errorf("dump missing %q:\n%s", w, res.Comments)
		}
	}
	if strings.Contains(res.Comments, "scrape.go") || strings.Contains(res.Comments, fmt.Sprintf("Thread %d ", self)) {
		t.Error("dump must not include the scraping goroutine")
	}
	if got, want := strings.Count(res.Comments, "\nThread "), 2; got != want {
		t.Errorf("dump has %d goroutines, want %d while the total reports 3", got, want)
	}

	c.SetEnabled(false)
	if c.Enabled() {
		t.Error("Enabled() after SetEnabled(false)")
	}
}

func TestThreadsCollector_RealStacks(t *testing.T) {
	c := NewThreadsCollector(nil)
	c.SetEnabled(true)
	res, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Metrics) != 1 || !strings.HasPrefix(res.Comments, "Threads traceback dump at ") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestParseStackDump(t *testing.T) {
	snaps := ParseStackDump([]byte("goroutine 1 [chan receive, 2 minutes]:\nmain.main()\n\ngarbage\n\n"))
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].ID != 1 || snaps[0].State != "chan receive, 2 minutes" || snaps[0].Stack != "main.main()" {
		t.Errorf("snapshot = %+v", snaps[0])
	}
}

type fakeLocator struct {
	reqs map[uint64]domain.RequestInfo
}

func (f *fakeLocator) Lookup(gid uint64) (domain.RequestInfo, bool) {
	info, ok := f.reqs[gid]
	return info, ok
}
