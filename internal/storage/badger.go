package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// gcRunTimeout bounds one pass of the background GC loop.
const gcRunTimeout = 5 * time.Minute

// BadgerEngine is a KVEngine on Badger v3.
type BadgerEngine struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	closed     atomic.Bool
	lastGC     atomic.Int64 // unix nanoseconds
	gcRewrites atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewBadgerEngine opens the engine. On-disk engines start a value log GC
// loop when cfg.Badger.GCInterval is positive.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("storage: data directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger}).
		WithBlockCacheSize(cfg.Badger.BlockCacheSize).
		WithSyncWrites(cfg.Badger.SyncWrites)
	if cfg.Badger.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.Badger.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}

	e := &BadgerEngine{
		db:     db,
		cfg:    cfg.Badger,
		logger: logger,
		stop:   make(chan struct{}),
	}
	if !cfg.InMemory && cfg.Badger.GCInterval > 0 {
		e.wg.Add(1)
		go e.gcLoop(cfg.Badger.GCInterval)
	}

	logger.Info("storage engine opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.Badger.GCInterval)
	return e, nil
}

// Get implements KVEngine.
func (e *BadgerEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Write implements KVEngine. Batches larger than one Badger transaction
// fail with badger.ErrTxnTooBig and nothing is written.
func (e *BadgerEngine) Write(ctx context.Context, entries []Entry) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, ent := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			if ent.Value == nil {
				err = txn.Delete(ent.Key)
			} else {
				err = txn.Set(ent.Key, ent.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanKeys implements KVEngine.
func (e *BadgerEngine) ScanKeys(ctx context.Context, prefix []byte, fn func(key []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(it.Item().KeyCopy(nil)) {
				return nil
			}
		}
		return nil
	})
}

// RunGC rewrites value log files until Badger reports nothing left to
// reclaim and returns the number of rewrites. In-memory engines have no
// value log.
func (e *BadgerEngine) RunGC(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if e.db.Opts().InMemory {
		return 0, nil
	}

	start := time.Now()
	var rewrites uint64
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return rewrites, fmt.Errorf("storage: value log gc: %w", err)
		}
		rewrites++
	}

	e.lastGC.Store(time.Now().UnixNano())
	e.gcRewrites.Add(rewrites)
	e.logger.Debug("value log gc finished", "rewrites", rewrites, "elapsed", time.Since(start))
	return rewrites, nil
}

// Stats implements KVEngine.
func (e *BadgerEngine) Stats(_ context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := e.db.Size()
	stats := &KVStats{
		LSMSize:      lsm,
		ValueLogSize: vlog,
		GCRewrites:   e.gcRewrites.Load(),
	}
	if ns := e.lastGC.Load(); ns != 0 {
		stats.LastGC = time.Unix(0, ns)
	}
	return stats, nil
}

// Close stops the GC loop and closes Badger. A second Close returns
// ErrClosed.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(e.stop)
	e.wg.Wait()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("storage: close badger: %w", err)
	}
	e.logger.Info("storage engine closed")
	return nil
}

// RegisterMetrics publishes the engine's sizes and GC rewrites on reg. The
// values are read on every collection. Returns e.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) *BadgerEngine {
	size := func(pick func(*KVStats) int64) func() float64 {
		return func() float64 {
			stats, err := e.Stats(context.Background())
			if err != nil {
				return 0
			}
			return float64(pick(stats))
		}
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "plonemetrics",
			Subsystem: "storage",
			Name:      "lsm_size_bytes",
			Help:      "Size of the Badger LSM tree in bytes.",
		}, size(func(s *KVStats) int64 { return s.LSMSize })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "plonemetrics",
			Subsystem: "storage",
			Name:      "value_log_size_bytes",
			Help:      "Size of the Badger value log in bytes.",
		}, size(func(s *KVStats) int64 { return s.ValueLogSize })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "plonemetrics",
			Subsystem: "storage",
			Name:      "gc_rewrites_total",
			Help:      "Value log files rewritten by garbage collection.",
		}, func() float64 { return float64(e.gcRewrites.Load()) }),
	)
	return e
}

func (e *BadgerEngine) gcLoop(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), gcRunTimeout)
			if _, err := e.RunGC(ctx); err != nil && !errors.Is(err, ErrClosed) {
				e.logger.Error("value log gc failed", "error", err)
			}
			cancel()
		case <-e.stop:
			return
		}
	}
}

// badgerLogger routes Badger's printf logging to slog. Badger's info
// chatter is demoted to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
