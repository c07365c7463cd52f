package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/collector"
	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/core/service"
	"github.com/yndnr/plonemetrics-go/internal/infra/buildinfo"
	"github.com/yndnr/plonemetrics-go/internal/infra/confloader"
	"github.com/yndnr/plonemetrics-go/internal/infra/shutdown"
	"github.com/yndnr/plonemetrics-go/internal/infra/tlsroots"
	"github.com/yndnr/plonemetrics-go/internal/server/config"
	"github.com/yndnr/plonemetrics-go/internal/server/httpserver"
	"github.com/yndnr/plonemetrics-go/internal/server/httpserver/handler"
	"github.com/yndnr/plonemetrics-go/internal/storage"
	"github.com/yndnr/plonemetrics-go/internal/storage/activity"
	"github.com/yndnr/plonemetrics-go/internal/storage/objdb"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/inflight"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/logger"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	info := buildinfo.Get()
	if *showVersion {
		fmt.Printf("plonemetrics-server %s\n", info)
		return nil
	}

	loader := newLoader(*configFile)
	cfg, err := loadConfig(loader.Load)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting plonemetrics-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.Global()
	metrics.SetBuildInfo(info.Version, info.Commit, info.GoVersion)

	kv, err := initStorage(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db := objdb.New(kv, objdb.Config{
		PoolSize:        cfg.Storage.PoolSize,
		CacheSize:       cfg.Storage.CacheSize,
		ActivityHistory: cfg.Storage.ActivityHistory,
	}, log)

	tracker := inflight.New()
	collectors := initCollectors(cfg, db, tracker)

	scraper := service.NewScrapeService(
		domain.NewServiceIdentity(cfg.Metrics.ServiceName),
		collectors.all(),
		service.WithObserver(metrics),
		service.WithLogger(log),
	)

	h := handler.New(handler.Config{
		Scraper: scraper,
		Objects: service.NewObjectService(db, cfg.Storage.MaxObjectSize),
		Ready: func(ctx context.Context) error {
			_, err := kv.Stats(ctx)
			return err
		},
		ObjectObserver: metrics,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         log,
	})

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:     h,
		Runtime:     metrics.Handler(),
		Logger:      log,
		Metrics:     metrics,
		Tracker:     tracker,
		ScrapeToken: cfg.Metrics.ScrapeToken,
		AllowList:   cfg.Metrics.AllowList,
		RateLimit:   cfg.Metrics.RateLimit,
		RateBurst:   cfg.Metrics.RateBurst,
	})

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, cfg.Server.HTTP.ReadHeaderTimeout)

	var keyPair *tlsroots.KeyPair
	if cfg.Server.HTTP.TLSCertFile != "" {
		tlsConfig, kp, err := initTLS(cfg, log)
		if err != nil {
			_ = db.Close()
			_ = kv.Close()
			return fmt.Errorf("init tls: %w", err)
		}
		httpServer.SetTLSConfig(tlsConfig)
		keyPair = kp
	}

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	// Hooks run in reverse order: HTTP first, then the database, then Badger.
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		log.Info("closing storage engine")
		return kv.Close()
	})
	shutdownHandler.OnShutdown("objdb", func(context.Context) error {
		log.Info("closing object database")
		return db.Close()
	})
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	if loader.FilePath() != "" {
		watcher, err := watchConfig(loader, cfg.Reloadable(), collectors, metrics, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if keyPair != nil {
		watcher, err := watchCertificates(keyPair, log)
		if err != nil {
			log.Warn("certificate hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("cert-watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Addr,
			"metrics_path", h.MetricsPath(),
			"service_name", scraper.Identity().Name)

		var err error
		if keyPair != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string) *confloader.Loader {
	opts := []confloader.Option{
		confloader.WithEnvAlias("SERVICE_NAME", "metrics.service_name"),
	}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads configuration from file and environment on top of the
// defaults. load is Loader.Load at startup and Loader.Reload afterwards.
func loadConfig(load func(target any) error) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initStorage opens the Badger engine backing the object database.
func initStorage(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (*storage.BadgerEngine, error) {
	kvCfg := storage.DefaultKVConfig(cfg.Storage.DataDir)
	if cfg.Storage.InMemory {
		kvCfg = storage.InMemoryKVConfig()
	}
	kvCfg.Badger.GCInterval = cfg.Storage.GCInterval

	kv, err := storage.NewBadgerEngine(kvCfg, log)
	if err != nil {
		return nil, err
	}
	return kv.RegisterMetrics(metrics.Prometheus()), nil
}

type collectorSet struct {
	db          *objdb.DB
	history     atomic.Int64 // time.Duration handed to a lazily created monitor
	cache       *collector.CacheCollector
	activity    *collector.ActivityCollector
	connections *collector.ConnectionsCollector
	threads     *collector.ThreadsCollector
}

func initCollectors(cfg *config.ServerConfig, db *objdb.DB, tracker *inflight.Registry) *collectorSet {
	s := &collectorSet{
		db:          db,
		cache:       collector.NewCacheCollector(db),
		connections: collector.NewConnectionsCollector(db),
		threads:     collector.NewThreadsCollector(tracker),
	}
	s.history.Store(int64(cfg.Storage.ActivityHistory))
	s.activity = collector.NewActivityCollector(db,
		collector.WithWindow(cfg.Metrics.ActivityWindow, cfg.Metrics.ActivityDivisions),
		collector.WithMonitorFactory(func() *activity.Monitor {
			return activity.NewMonitor(time.Duration(s.history.Load()))
		}),
	)
	s.threads.SetEnabled(cfg.Metrics.ThreadDumpEnabled)
	return s
}

// all returns the collectors in exposition order.
func (s *collectorSet) all() []collector.Collector {
	return []collector.Collector{s.cache, s.activity, s.connections, s.threads}
}

// apply switches the collectors to the reloadable settings in r. The
// retention changes before the window so a wider window never reads past it.
func (s *collectorSet) apply(r config.Reloadable) {
	s.threads.SetEnabled(r.ThreadDumpEnabled)
	s.history.Store(int64(r.ActivityHistory))
	if m := s.db.ActivityMonitor(); m != nil {
		m.SetHistory(r.ActivityHistory)
	}
	s.activity.SetWindow(r.ActivityWindow, r.ActivityDivisions)
}

// initTLS loads the serving key pair and, when configured, the CAs that
// scraper client certificates must chain to.
func initTLS(cfg *config.ServerConfig, log *slog.Logger) (*tls.Config, *tlsroots.KeyPair, error) {
	kp, err := tlsroots.LoadKeyPair(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, log)
	if err != nil {
		return nil, nil, err
	}

	var clientCAs *tlsroots.Pool
	if cfg.Server.HTTP.TLSClientCAFile != "" {
		clientCAs, err = tlsroots.LoadPool(cfg.Server.HTTP.TLSClientCAFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("mutual TLS enabled",
			"client_ca_file", cfg.Server.HTTP.TLSClientCAFile,
			"client_cas", clientCAs.Len())
	}
	return tlsroots.ServerConfig(kp, clientCAs), kp, nil
}

// watchCertificates reloads the serving certificate when either of its
// files changes. A failed reload keeps the previous certificate.
func watchCertificates(kp *tlsroots.KeyPair, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	for _, path := range kp.Files() {
		if err := watcher.Watch(path); err != nil {
			_ = watcher.Stop()
			return nil, err
		}
	}

	watcher.OnChange(func(path string) {
		if err := kp.Reload(); err != nil {
			log.Error("certificate reload failed", "path", path, "error", err)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}

// watchConfig reloads the config file on change and applies the settings
// that do not need a restart. Everything else is logged and ignored.
func watchConfig(loader *confloader.Loader, current config.Reloadable, collectors *collectorSet,
	metrics *metric.Registry, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(loader.FilePath()); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	var mu sync.Mutex
	watcher.OnChange(func(path string) {
		mu.Lock()
		defer mu.Unlock()

		cfg, err := loadConfig(loader.Reload)
		metrics.RecordConfigReload(err)
		if err != nil {
			log.Error("config reload rejected", "path", path, "error", err)
			return
		}

		next := cfg.Reloadable()
		if next == current {
			log.Info("config reloaded, nothing to apply", "path", path)
			return
		}
		if next.LogLevel != current.LogLevel {
			logger.SetLevel(next.LogLevel)
		}
		collectors.apply(next)
		log.Info("config reloaded",
			"path", path,
			"log_level", next.LogLevel,
			"thread_dump_enabled", next.ThreadDumpEnabled,
			"activity_window", next.ActivityWindow,
			"activity_divisions", next.ActivityDivisions,
			"activity_history", next.ActivityHistory)
		current = next
	})
	watcher.StartAsync()

	return watcher, nil
}
