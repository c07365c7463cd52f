package command

import (
	"bytes"
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/infra/buildinfo"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// runtimeMetricsPath serves the server's own metrics, including build info.
const runtimeMetricsPath = "/metrics/runtime"

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show client and server versions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "client",
				Usage: "Only show the client version",
			},
		},
		Action: version,
	}
}

// VersionReport is the output of the version command.
type VersionReport struct {
	Client buildinfo.Info  `json:"client" yaml:"client"`
	Server *buildinfo.Info `json:"server,omitempty" yaml:"server,omitempty"`
	Error  string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func version(c *cli.Context) error {
	report := VersionReport{Client: buildinfo.Get()}

	if !c.Bool("client") {
		server, err := serverVersion(c)
		if err != nil {
			report.Error = err.Error()
		} else {
			report.Server = server
		}
	}

	if GetSettings(c).Output == "table" {
		printf(c.App.Writer, "Client: %s\n", report.Client)
		switch {
		case report.Server != nil:
			printf(c.App.Writer, "Server: %s (%s)\n", report.Server.Version, report.Server.Commit)
		case report.Error != "":
			printf(c.App.Writer, "Server: unavailable: %s\n", report.Error)
		}
		return nil
	}
	return render(c, report)
}

// serverVersion reads plonemetrics_build_info from the runtime metrics.
func serverVersion(c *cli.Context) (*buildinfo.Info, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := Client(c).GetBytes(ctx, runtimeMetricsPath)
	if err != nil {
		return nil, err
	}
	samples, err := exposition.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if s.Name != "plonemetrics_build_info" {
			continue
		}
		info := &buildinfo.Info{}
		info.Version, _ = s.Labels.Get("version")
		info.Commit, _ = s.Labels.Get("commit")
		info.GoVersion, _ = s.Labels.Get("goversion")
		return info, nil
	}
	return &buildinfo.Info{Version: "unknown"}, nil
}
