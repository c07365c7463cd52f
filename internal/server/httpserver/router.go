package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/plonemetrics-go/internal/server/httpserver/handler"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/metric"
)

// RuntimePath serves the server's own Prometheus metrics.
const RuntimePath = "/metrics/runtime"

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the application routes.
	Handler *handler.Handler

	// Runtime serves RuntimePath. Optional.
	Runtime http.Handler

	// Logger for request logging.
	Logger *slog.Logger

	// Metrics receives request metrics. Optional.
	Metrics *metric.Registry

	// Tracker annotates goroutine dumps with requests. Optional.
	Tracker RequestTracker

	// ScrapeToken protects both metrics routes when set.
	ScrapeToken string

	// AllowList is the IP/CIDR allowlist for the metrics routes (empty = no restriction).
	AllowList []string

	// RateLimit is the per-client rate for the metrics routes (0 = unlimited).
	RateLimit float64

	// RateBurst is the per-client burst for the metrics routes.
	RateBurst int
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := cfg.Handler

	var recorder RequestRecorder
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
	}

	base := func(route string, extra ...Middleware) http.Handler {
		chain := []Middleware{Recover(log), RequestID(), Audit(log, recorder, route)}
		return Chain(h, append(chain, extra...)...)
	}

	// Order for metrics routes: ACL -> RateLimit -> Auth
	var guard []Middleware
	guard = append(guard, NetworkACL(cfg.AllowList, log))
	if cfg.RateLimit > 0 {
		rl := RateLimitConfig{Rate: cfg.RateLimit, Burst: cfg.RateBurst}
		if cfg.Metrics != nil {
			rl.OnLimited = cfg.Metrics.IncRateLimited
		}
		guard = append(guard, RateLimit(rl))
	}
	var onAuthFailure func(string)
	if cfg.Metrics != nil {
		onAuthFailure = cfg.Metrics.RecordAuthFailure
	}
	guard = append(guard, MetricsAuth(cfg.ScrapeToken, onAuthFailure))

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.Handle("GET /health", base("/health"))
	mux.Handle("GET /ready", base("/ready"))

	metricsPath := h.MetricsPath()
	mux.Handle("GET "+metricsPath, base(metricsPath, append(guard, Track(cfg.Tracker))...))

	if cfg.Runtime != nil {
		runtime := Chain(cfg.Runtime, append([]Middleware{Recover(log), RequestID(), Audit(log, recorder, RuntimePath)}, guard...)...)
		mux.Handle("GET "+RuntimePath, runtime)
	}

	objects := base("/objects/{oid}", Track(cfg.Tracker))
	mux.Handle("GET /objects/{oid}", objects)
	mux.Handle("PUT /objects/{oid}", objects)

	return mux
}
