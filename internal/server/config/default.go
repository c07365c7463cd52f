package config

import (
	"time"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// Default configuration values.
const (
	DefaultHTTPAddr          = "127.0.0.1:9102"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second

	DefaultMetricsPath = "/metrics"
	DefaultRateBurst   = 10

	DefaultDataDir         = "/var/lib/plonemetrics/data"
	DefaultCacheSize       = 400
	DefaultPoolSize        = 7
	DefaultActivityHistory = time.Hour
	DefaultGCInterval      = 10 * time.Minute
	DefaultMaxObjectSize   = 1 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:              DefaultHTTPAddr,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				ShutdownTimeout:   DefaultShutdownTimeout,
			},
		},
		Metrics: MetricsSection{
			ServiceName:       domain.DefaultServiceName,
			Path:              DefaultMetricsPath,
			ActivityWindow:    domain.DefaultActivityWindow,
			ActivityDivisions: domain.DefaultActivityDivisions,
			RateBurst:         DefaultRateBurst,
		},
		Storage: StorageSection{
			DataDir:         DefaultDataDir,
			CacheSize:       DefaultCacheSize,
			PoolSize:        DefaultPoolSize,
			ActivityHistory: DefaultActivityHistory,
			GCInterval:      DefaultGCInterval,
			MaxObjectSize:   DefaultMaxObjectSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
