package config

// CLIConfig is the configuration for plonemetrics-cli.
type CLIConfig struct {
	// Server is the plonemetrics-server address.
	Server string `yaml:"server"`

	// Token is the scrape token sent as a bearer token.
	Token string `yaml:"token,omitempty"`

	// MetricsPath is the route of the exposition feed.
	MetricsPath string `yaml:"metrics_path"`

	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// CAFile is a PEM bundle of CAs trusted for an https server.
	CAFile string `yaml:"ca_file,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:      "http://127.0.0.1:9102",
		MetricsPath: "/metrics",
		Output:      "table",
	}
}
