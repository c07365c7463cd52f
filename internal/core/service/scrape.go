package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yndnr/plonemetrics-go/internal/collector"
	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/exposition"
)

// ScrapeObserver receives timings and outcomes of scrapes.
type ScrapeObserver interface {
	ObserveCollector(name string, d time.Duration, err error)
	ObserveScrape(d time.Duration, err error)
}

// ScrapeService renders the exposition feed.
//
// Collectors run one after another in registration order. Every metric is
// tagged with the service identity label, and the identity marker line is
// always written last.
type ScrapeService struct {
	identity   domain.ServiceIdentity
	collectors []collector.Collector
	observer   ScrapeObserver
	logger     *slog.Logger
}

// ScrapeOption configures a ScrapeService.
type ScrapeOption func(*ScrapeService)

// WithObserver sets the scrape observer.
func WithObserver(o ScrapeObserver) ScrapeOption {
	return func(s *ScrapeService) {
		s.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ScrapeOption {
	return func(s *ScrapeService) {
		s.logger = l
	}
}

// NewScrapeService creates a ScrapeService.
func NewScrapeService(identity domain.ServiceIdentity, collectors []collector.Collector, opts ...ScrapeOption) *ScrapeService {
	s := &ScrapeService{
		identity:   identity,
		collectors: collectors,
		observer:   nopObserver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity returns the service identity attached to every metric.
func (s *ScrapeService) Identity() domain.ServiceIdentity {
	return s.identity
}

// Render runs all enabled collectors and returns the exposition text.
//
// A collector that fails is logged and left out. Render fails with
// domain.ErrAllCollectorsFailed when no enabled collector succeeded, and
// with domain.ErrMalformedMetricName or ErrMalformedMetricValue when a
// collector produced a metric that cannot be rendered.
func (s *ScrapeService) Render(ctx context.Context) (string, error) {
	start := time.Now()
	out, err := s.render(ctx)
	s.observer.ObserveScrape(time.Since(start), err)
	return out, err
}

func (s *ScrapeService) render(ctx context.Context) (string, error) {
	var b strings.Builder
	label := s.identity.LabelName()
	value := s.identity.LabelValue()

	ran, failed := 0, 0
	for _, c := range s.collectors {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if cond, ok := c.(collector.Conditional); ok && !cond.Enabled() {
			continue
		}
		ran++

		started := time.Now()
		res, err := c.Collect(ctx)
		s.observer.ObserveCollector(c.Name(), time.Since(started), err)
		if err != nil {
			failed++
			if errors.Is(err, domain.ErrCollectionUnavailable) {
				s.logger.Warn("collector unavailable", "collector", c.Name(), "reason", reason(err))
			} else {
				s.logger.Error("collector failed", "collector", c.Name(), "error", err)
			}
			continue
		}

		for _, m := range res.Metrics {
			text, err := exposition.Format(m.Name, m.Labels.With(label, value), m.Value, m.Kind, m.Help)
			if err != nil {
				return "", fmt.Errorf("collector %s: %w", c.Name(), err)
			}
			b.WriteString(text)
		}
		b.WriteString(exposition.Comment(res.Comments))
	}

	if ran > 0 && failed == ran {
		return "", domain.ErrAllCollectorsFailed.WithDetails(fmt.Sprintf("%d collectors", ran))
	}

	marker, err := exposition.Format(label, exposition.Labels{{Name: label, Value: value}}, 1, exposition.KindNone, "")
	if err != nil {
		return "", fmt.Errorf("identity marker: %w", err)
	}
	b.WriteString(marker)
	return b.String(), nil
}

// reason flattens an error chain into one line for logging.
func reason(err error) string {
	parts := []string{err.Error()}
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, ": ")
}

type nopObserver struct{}

func (nopObserver) ObserveCollector(string, time.Duration, error) {}
func (nopObserver) ObserveScrape(time.Duration, error)            {}
