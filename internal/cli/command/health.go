package command

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/cli/connection"
)

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server liveness and readiness",
		Action: health,
	}
}

// HealthReport is the result of the health command.
type HealthReport struct {
	Target string `json:"target" yaml:"target"`
	Health string `json:"health" yaml:"health"`
	Ready  string `json:"ready" yaml:"ready"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type healthBody struct {
	Data struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"data"`
}

var errNotReady = errors.New("server is not ready")

func health(c *cli.Context) error {
	client := Client(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report := HealthReport{Target: client.BaseURL()}

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return err
	}
	var live healthBody
	if err := connection.ParseResponse(resp, &live); err != nil {
		return err
	}
	report.Health = live.Data.Status

	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return err
	}
	var ready healthBody
	readyErr := connection.ParseResponse(resp, &ready)
	if readyErr != nil {
		report.Ready = "not_ready"
		report.Reason = readyErr.Error()
	} else {
		report.Ready = ready.Data.Status
	}

	if err := render(c, report); err != nil {
		return err
	}
	if readyErr != nil {
		return errNotReady
	}
	return nil
}
