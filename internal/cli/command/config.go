package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the CLI settings file",
		Subcommands: []*cli.Command{
			{
				Name:   "view",
				Usage:  "Show the effective settings",
				Action: configView,
			},
			{
				Name:  "init",
				Usage: "Write the effective settings to the settings file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

// EffectiveConfig is the output of config view.
type EffectiveConfig struct {
	File        string `json:"file" yaml:"file"`
	Server      string `json:"server" yaml:"server"`
	Token       string `json:"token" yaml:"token"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"`
	CAFile      string `json:"ca_file" yaml:"ca_file"`
	Output      string `json:"output" yaml:"output"`
}

func configView(c *cli.Context) error {
	s := GetSettings(c)
	return render(c, EffectiveConfig{
		File:        s.ConfigPath,
		Server:      s.Server,
		Token:       maskToken(s.Token),
		MetricsPath: s.MetricsPath,
		CAFile:      s.CAFile,
		Output:      string(s.Output),
	})
}

func configInit(c *cli.Context) error {
	s := GetSettings(c)

	if !c.Bool("force") {
		if _, err := os.Stat(s.ConfigPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", s.ConfigPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg := &config.CLIConfig{
		Server:      s.Server,
		Token:       s.Token,
		MetricsPath: s.MetricsPath,
		Output:      string(s.Output),
		CAFile:      s.CAFile,
	}
	if err := config.Save(cfg, s.ConfigPath); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s\n", s.ConfigPath)
	return nil
}

func maskToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= 4:
		return "****"
	default:
		return token[:2] + "****" + token[len(token)-2:]
	}
}
