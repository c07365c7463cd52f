package config

import "time"

// ServerConfig is the root configuration for plonemetrics-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Metrics MetricsSection `koanf:"metrics"`
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	TLSCertFile       string        `koanf:"tls_cert_file"`
	TLSKeyFile        string        `koanf:"tls_key_file"`
	// TLSClientCAFile enables mutual TLS: scrapers must present a
	// certificate signed by one of these CAs.
	TLSClientCAFile   string        `koanf:"tls_client_ca_file"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// MetricsSection configures the exposition endpoint.
type MetricsSection struct {
	// ServiceName is the value of the plone_service_name label.
	// The SERVICE_NAME environment variable overrides it.
	ServiceName string `koanf:"service_name"`

	// Path is the route of the exposition feed.
	Path string `koanf:"path"`

	// ActivityWindow should match the scrape interval.
	ActivityWindow    time.Duration `koanf:"activity_window"`
	ActivityDivisions int           `koanf:"activity_divisions"`

	// ThreadDumpEnabled appends a goroutine dump to every scrape.
	ThreadDumpEnabled bool `koanf:"thread_dump_enabled"`

	// ScrapeToken, when set, must be presented as a bearer token.
	ScrapeToken string `koanf:"scrape_token"`

	// AllowList restricts scrapers to these IPs and CIDRs. Empty allows all.
	AllowList []string `koanf:"allow_list"`

	// RateLimit is the per-client request rate on the metrics routes.
	// Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// StorageSection configures the hosted object database.
type StorageSection struct {
	DataDir         string        `koanf:"data_dir"`
	InMemory        bool          `koanf:"in_memory"`
	CacheSize       int           `koanf:"cache_size"`
	PoolSize        int           `koanf:"pool_size"`
	ActivityHistory time.Duration `koanf:"activity_history"`
	GCInterval      time.Duration `koanf:"gc_interval"`
	MaxObjectSize   int           `koanf:"max_object_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Reloadable is the part of the configuration applied without a restart.
type Reloadable struct {
	LogLevel          string
	ThreadDumpEnabled bool
	ActivityWindow    time.Duration
	ActivityDivisions int
	ActivityHistory   time.Duration
}

// Reloadable returns the hot-reloadable settings.
func (c *ServerConfig) Reloadable() Reloadable {
	return Reloadable{
		LogLevel:          c.Log.Level,
		ThreadDumpEnabled: c.Metrics.ThreadDumpEnabled,
		ActivityWindow:    c.Metrics.ActivityWindow,
		ActivityDivisions: c.Metrics.ActivityDivisions,
		ActivityHistory:   c.Storage.ActivityHistory,
	}
}
