package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plonemetrics"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Scrape metrics
	ScrapesTotal      *prometheus.CounterVec
	ScrapeDuration    prometheus.Histogram
	CollectorFailures *prometheus.CounterVec
	CollectorDuration *prometheus.HistogramVec

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInflight prometheus.Gauge

	// Object API metrics
	ObjectOps *prometheus.CounterVec

	// Security metrics
	AuthFailures *prometheus.CounterVec
	RateLimited  prometheus.Counter

	// Lifecycle metrics
	ConfigReloads *prometheus.CounterVec
	BuildInfo     *prometheus.GaugeVec
}

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns the HTTP handler of the process-wide registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with all application metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		ScrapesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Total number of exposition scrapes by result.",
		}, []string{"result"}),
		ScrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time spent rendering the exposition feed.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		CollectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_failures_total",
			Help:      "Total number of collector runs that were skipped because of an error.",
		}, []string{"collector"}),
		CollectorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collector_duration_seconds",
			Help:      "Time spent in a single collector.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"collector"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Number of HTTP requests currently being served.",
		}),

		ObjectOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_operations_total",
			Help:      "Total number of object API operations by kind and result.",
		}, []string{"op", "result"}),

		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected scrape requests by reason.",
		}, []string{"reason"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),

		ConfigReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reloads by result.",
		}, []string{"result"}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, constant 1.",
		}, []string{"version", "commit", "goversion"}),
	}

	reg.MustRegister(
		r.ScrapesTotal,
		r.ScrapeDuration,
		r.CollectorFailures,
		r.CollectorDuration,
		r.RequestsTotal,
		r.RequestDuration,
		r.RequestsInflight,
		r.ObjectOps,
		r.AuthFailures,
		r.RateLimited,
		r.ConfigReloads,
		r.BuildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus returns the underlying client_golang registry, for components
// that register their own collectors (the storage engine does).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry: r.registry,
	})
}

// ObserveScrape records one exposition scrape.
func (r *Registry) ObserveScrape(d time.Duration, err error) {
	r.ScrapesTotal.WithLabelValues(result(err)).Inc()
	r.ScrapeDuration.Observe(d.Seconds())
}

// ObserveCollector records one collector run. A non-nil err counts as a
// skipped collector.
func (r *Registry) ObserveCollector(name string, d time.Duration, err error) {
	r.CollectorDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		r.CollectorFailures.WithLabelValues(name).Inc()
	}
}

// RecordRequest increments the HTTP request counter.
func (r *Registry) RecordRequest(method, route, status string) {
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// ObserveRequestDuration records HTTP request latency in seconds.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// IncInflight increments the in-flight request gauge.
func (r *Registry) IncInflight() {
	r.RequestsInflight.Inc()
}

// DecInflight decrements the in-flight request gauge.
func (r *Registry) DecInflight() {
	r.RequestsInflight.Dec()
}

// RecordObjectOp increments the object API counter.
func (r *Registry) RecordObjectOp(op string, err error) {
	r.ObjectOps.WithLabelValues(op, result(err)).Inc()
}

// RecordAuthFailure increments the auth failure counter.
func (r *Registry) RecordAuthFailure(reason string) {
	r.AuthFailures.WithLabelValues(reason).Inc()
}

// IncRateLimited increments the rate limiter rejection counter.
func (r *Registry) IncRateLimited() {
	r.RateLimited.Inc()
}

// RecordConfigReload increments the config reload counter.
func (r *Registry) RecordConfigReload(err error) {
	r.ConfigReloads.WithLabelValues(result(err)).Inc()
}

// SetBuildInfo publishes the build information gauge.
func (r *Registry) SetBuildInfo(version, commit, goVersion string) {
	r.BuildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
