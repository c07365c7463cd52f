package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr    string `koanf:"addr"`
			Enabled bool   `koanf:"enabled"`
		} `koanf:"http"`
	} `koanf:"server"`
	Metrics struct {
		ServiceName    string        `koanf:"service_name"`
		ActivityWindow time.Duration `koanf:"activity_window"`
		AllowList      []string      `koanf:"allow_list"`
	} `koanf:"metrics"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/plonemetrics.yaml"), WithEnvAlias("SERVICE_NAME", "metrics.service_name"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want TEST_", l.envPrefix)
	}
	if l.FilePath() != "/etc/plonemetrics.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
	if l.aliases["SERVICE_NAME"] != "metrics.service_name" {
		t.Errorf("aliases = %v", l.aliases)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "0.0.0.0:9102"
    enabled: true
metrics:
  service_name: plone-a
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.k.String("server.http.addr"); got != "0.0.0.0:9102" {
		t.Errorf("server.http.addr = %q", got)
	}
	if !l.k.Bool("server.http.enabled") {
		t.Error("server.http.enabled should be true")
	}
	if got := l.k.String("metrics.service_name"); got != "plone-a" {
		t.Errorf("metrics.service_name = %q", got)
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile(writeConfig(t, "server: [unclosed")); err == nil {
		t.Error("LoadFile() should fail for invalid YAML")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"PLONEMETRICS_SERVER__HTTP__ADDR", "server.http.addr"},
		{"PLONEMETRICS_METRICS__SERVICE_NAME", "metrics.service_name"},
		{"PLONEMETRICS_STORAGE__IN_MEMORY", "storage.in_memory"},
		{"PLONEMETRICS_DEBUG", "debug"},
	}
	for _, tt := range tests {
		if got := EnvKey(DefaultEnvPrefix, tt.name); got != tt.want {
			t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("PLONEMETRICS_SERVER__HTTP__ADDR", "127.0.0.1:8080")
	t.Setenv("PLONEMETRICS_METRICS__SERVICE_NAME", "from-env")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.k.String("server.http.addr"); got != "127.0.0.1:8080" {
		t.Errorf("server.http.addr = %q", got)
	}
	if got := l.k.String("metrics.service_name"); got != "from-env" {
		t.Errorf("metrics.service_name = %q", got)
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER__PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if port := l.k.String("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want 9090", port)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "from-file:9102"
metrics:
  service_name: from-file
`)

	t.Run("alias overrides file", func(t *testing.T) {
		t.Setenv("SERVICE_NAME", "from-alias")

		var cfg testConfig
		l := NewLoader(WithConfigFile(path), WithEnvAlias("SERVICE_NAME", "metrics.service_name"))
		if err := l.Load(&cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Metrics.ServiceName != "from-alias" {
			t.Errorf("ServiceName = %q, want from-alias", cfg.Metrics.ServiceName)
		}
		if cfg.Server.HTTP.Addr != "from-file:9102" {
			t.Errorf("Addr = %q, want from-file:9102", cfg.Server.HTTP.Addr)
		}
	})

	t.Run("blank alias is ignored", func(t *testing.T) {
		t.Setenv("SERVICE_NAME", "  ")

		var cfg testConfig
		l := NewLoader(WithConfigFile(path), WithEnvAlias("SERVICE_NAME", "metrics.service_name"))
		if err := l.Load(&cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Metrics.ServiceName != "from-file" {
			t.Errorf("ServiceName = %q, want from-file", cfg.Metrics.ServiceName)
		}
	})

	t.Run("prefixed env overrides alias", func(t *testing.T) {
		t.Setenv("SERVICE_NAME", "from-alias")
		t.Setenv("PLONEMETRICS_METRICS__SERVICE_NAME", "from-env")
		t.Setenv("PLONEMETRICS_SERVER__HTTP__ADDR", "from-env:8080")

		var cfg testConfig
		l := NewLoader(WithConfigFile(path), WithEnvAlias("SERVICE_NAME", "metrics.service_name"))
		if err := l.Load(&cfg); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Metrics.ServiceName != "from-env" {
			t.Errorf("ServiceName = %q, want from-env", cfg.Metrics.ServiceName)
		}
		if cfg.Server.HTTP.Addr != "from-env:8080" {
			t.Errorf("Addr = %q, want from-env:8080", cfg.Server.HTTP.Addr)
		}
	})
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
metrics:
  activity_window: 30s
  allow_list: ["10.0.0.0/8", "127.0.0.1"]
`)

	var cfg testConfig
	cfg.Server.HTTP.Addr = "default:9102"
	cfg.Metrics.ServiceName = "local-plone"

	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP.Addr != "default:9102" {
		t.Errorf("Addr = %q, want the prefilled default", cfg.Server.HTTP.Addr)
	}
	if cfg.Metrics.ServiceName != "local-plone" {
		t.Errorf("ServiceName = %q, want the prefilled default", cfg.Metrics.ServiceName)
	}
	if cfg.Metrics.ActivityWindow != 30*time.Second {
		t.Errorf("ActivityWindow = %v, want 30s", cfg.Metrics.ActivityWindow)
	}
	if len(cfg.Metrics.AllowList) != 2 || cfg.Metrics.AllowList[1] != "127.0.0.1" {
		t.Errorf("AllowList = %v", cfg.Metrics.AllowList)
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, "metrics:\n  service_name: first\n")

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  http:\n    addr: \":1\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var next testConfig
	if err := l.Reload(&next); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if next.Metrics.ServiceName != "" {
		t.Errorf("ServiceName = %q, keys removed from the file should be gone", next.Metrics.ServiceName)
	}
	if next.Server.HTTP.Addr != ":1" {
		t.Errorf("Addr = %q, want :1", next.Server.HTTP.Addr)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	err := l.LoadMap(map[string]any{
		"server.http.addr": "localhost:3000",
		"port":             8080,
		"debug":            true,
	})
	if err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if got := l.k.String("server.http.addr"); got != "localhost:3000" {
		t.Errorf("server.http.addr = %q", got)
	}
	if got := l.k.Int("port"); got != 8080 {
		t.Errorf("port = %d", got)
	}
	if !l.k.Bool("debug") {
		t.Error("debug should be true")
	}
	if l.k.Get("server.http") == nil {
		t.Error("dotted keys should expand into sections")
	}
	if len(l.k.Keys()) != 3 {
		t.Errorf("Keys() = %v", l.k.Keys())
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Server.HTTP.Addr != "localhost:3000" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
}

func TestMapProvider_ReadBytes(t *testing.T) {
	if _, err := (mapProvider{}).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v", err)
	}
}
