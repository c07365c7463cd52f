package command

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// ScrapeCommand returns the scrape command.
func ScrapeCommand() *cli.Command {
	return &cli.Command{
		Name:  "scrape",
		Usage: "Fetch the exposition feed",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print the feed exactly as served",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only show metrics whose name contains this text",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Also print comment lines (the goroutine dump)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: scrape,
	}
}

// labelSet renders as name="value" pairs, sorted by name.
type labelSet map[string]string

func (l labelSet) String() string {
	if len(l) == 0 {
		return "-"
	}
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%q", name, l[name]))
	}
	return strings.Join(parts, ",")
}

// ScrapedMetric is one sample of the feed as shown by the CLI.
type ScrapedMetric struct {
	Name   string   `json:"name" yaml:"name"`
	Labels labelSet `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  string   `json:"value" yaml:"value"`
	Type   string   `json:"type,omitempty" yaml:"type,omitempty" table:"wide"`
	Help   string   `json:"help,omitempty" yaml:"help,omitempty" table:"wide"`
}

func scrape(c *cli.Context) error {
	s := GetSettings(c)

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	body, err := Client(c).GetBytes(ctx, s.MetricsPath)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", s.MetricsPath, err)
	}

	if c.Bool("raw") {
		_, err := c.App.Writer.Write(body)
		return err
	}

	doc, err := exposition.ParseDocument(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}

	metrics := toScraped(doc.Samples, c.String("filter"))
	if err := render(c, metrics); err != nil {
		return err
	}

	if c.Bool("dump") && len(doc.Comments) > 0 {
		printf(c.App.Writer, "\n%s\n", strings.Join(doc.Comments, "\n"))
	}
	return nil
}

func toScraped(samples []exposition.Sample, filter string) []ScrapedMetric {
	out := make([]ScrapedMetric, 0, len(samples))
	for _, sample := range samples {
		if filter != "" && !strings.Contains(sample.Name, filter) {
			continue
		}
		m := ScrapedMetric{
			Name:  sample.Name,
			Value: sample.Raw,
			Type:  sample.Kind.String(),
			Help:  sample.Help,
		}
		if len(sample.Labels) > 0 {
			m.Labels = make(labelSet, len(sample.Labels))
			for _, l := range sample.Labels {
				m.Labels[l.Name] = l.Value
			}
		}
		out = append(out, m)
	}
	return out
}
