package command

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/cli/config"
	"github.com/yndnr/plonemetrics-go/internal/cli/connection"
	"github.com/yndnr/plonemetrics-go/internal/cli/output"
	"github.com/yndnr/plonemetrics-go/internal/infra/buildinfo"
	"github.com/yndnr/plonemetrics-go/internal/infra/tlsroots"
)

const settingsKey = "settings"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "plonemetrics-cli",
		Usage:   "Inspect a plonemetrics-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ScrapeCommand(),
			HealthCommand(),
			ObjectCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			s, err := resolveSettings(c)
			if err != nil {
				return err
			}
			c.App.Metadata[settingsKey] = s
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI settings file",
			EnvVars: []string{"PLONEMETRICS_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "plonemetrics-server address (e.g., 127.0.0.1:9102)",
			EnvVars: []string{"PLONEMETRICS_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Scrape token sent as a bearer token",
			EnvVars: []string{"PLONEMETRICS_SCRAPE_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "metrics-path",
			Usage:   "Route of the exposition feed",
			EnvVars: []string{"PLONEMETRICS_METRICS_PATH"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle of CAs trusted for an https server",
			EnvVars: []string{"PLONEMETRICS_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// Settings is the effective configuration of one invocation.
type Settings struct {
	ConfigPath string
	File       *config.CLIConfig

	Server      string
	Token       string
	MetricsPath string
	CAFile      string
	Output      output.Format
	Wide        bool

	// RootCAs is loaded from CAFile. Nil means the system roots.
	RootCAs *tlsroots.Pool
}

// resolveSettings layers flags and environment over the settings file.
func resolveSettings(c *cli.Context) (*Settings, error) {
	path := c.String("config")
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	pick := func(flag, fallback string) string {
		if c.IsSet(flag) {
			return c.String(flag)
		}
		return fallback
	}

	format, err := output.ParseFormat(pick("output", file.Output))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		ConfigPath:  path,
		File:        file,
		Server:      pick("server", file.Server),
		Token:       pick("token", file.Token),
		MetricsPath: pick("metrics-path", file.MetricsPath),
		CAFile:      pick("ca-file", file.CAFile),
		Output:      format,
		Wide:        c.Bool("wide"),
	}
	if s.CAFile != "" {
		if s.RootCAs, err = tlsroots.LoadPool(s.CAFile); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetSettings returns the settings resolved by the Before hook.
func GetSettings(c *cli.Context) *Settings {
	if s, ok := c.App.Metadata[settingsKey].(*Settings); ok {
		return s
	}
	return &Settings{Server: config.Default().Server, MetricsPath: "/metrics", Output: output.FormatTable}
}

// Client returns an HTTP client for the configured server.
func Client(c *cli.Context) *connection.HTTPClient {
	s := GetSettings(c)
	client := connection.NewHTTPClient(s.Server, s.Token)
	if s.RootCAs != nil {
		client.WithTLSConfig(s.RootCAs.ClientConfig())
	}
	return client
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	s := GetSettings(c)
	return output.NewFormatter(s.Output, s.Wide).Format(c.App.Writer, data)
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
