package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/plonemetrics-go/internal/telemetry/logger"
)

// Verify validates the configuration. It creates the data directory of an
// on-disk store when it does not exist.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if cfg.Metrics.ActivityWindow > cfg.Storage.ActivityHistory {
		return fmt.Errorf("metrics.activity_window %s exceeds storage.activity_history %s",
			cfg.Metrics.ActivityWindow, cfg.Storage.ActivityHistory)
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.TLSClientCAFile != "" && cfg.HTTP.TLSCertFile == "" {
		return errors.New("server.http.tls_client_ca_file requires tls_cert_file and tls_key_file")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, cfg.HTTP.TLSClientCAFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http tls file: %w", err)
		}
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", cfg.Path)
	}
	switch cfg.Path {
	case "/health", "/ready", "/metrics/runtime":
		return fmt.Errorf("metrics.path %q collides with a built-in route", cfg.Path)
	}
	if cfg.ActivityWindow <= 0 {
		return errors.New("metrics.activity_window must be positive")
	}
	if cfg.ActivityDivisions < 1 {
		return errors.New("metrics.activity_divisions must be at least 1")
	}
	if cfg.RateLimit < 0 {
		return errors.New("metrics.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("metrics.rate_burst must be at least 1 when rate_limit is set")
	}
	for _, entry := range cfg.AllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("metrics.allow_list: %w", err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("metrics.allow_list: invalid IP %q", entry)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.CacheSize < 1 {
		return errors.New("storage.cache_size must be at least 1")
	}
	if cfg.PoolSize < 1 {
		return errors.New("storage.pool_size must be at least 1")
	}
	if cfg.ActivityHistory <= 0 {
		return errors.New("storage.activity_history must be positive")
	}
	if cfg.MaxObjectSize < 1 {
		return errors.New("storage.max_object_size must be at least 1")
	}
	if cfg.InMemory {
		return nil
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required unless storage.in_memory is set")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format %q is not json or text", cfg.Format)
}
