package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/logger"
)

// Scraper renders the exposition feed.
type Scraper interface {
	Render(ctx context.Context) (string, error)
}

// ObjectAPI reads and writes objects.
type ObjectAPI interface {
	Get(ctx context.Context, oid domain.OID) ([]byte, error)
	Put(ctx context.Context, oid domain.OID, state []byte) error
	MaxSize() int
}

// ObjectObserver records object operation outcomes.
type ObjectObserver interface {
	RecordObjectOp(op string, err error)
}

// Config wires the handler to its services.
type Config struct {
	Scraper Scraper
	Objects ObjectAPI

	// Ready reports whether the server can take traffic. Nil means always.
	Ready func(ctx context.Context) error

	// ObjectObserver is optional.
	ObjectObserver ObjectObserver

	// MetricsPath is the route of the exposition feed.
	MetricsPath string

	Logger *slog.Logger
}

// Handler serves all plonemetrics-server routes.
type Handler struct {
	scraper     Scraper
	objects     ObjectAPI
	ready       func(ctx context.Context) error
	observer    ObjectObserver
	metricsPath string
	logger      *slog.Logger
	mux         *http.ServeMux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		scraper:     cfg.Scraper,
		objects:     cfg.Objects,
		ready:       cfg.Ready,
		observer:    cfg.ObjectObserver,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
		mux:         http.NewServeMux(),
	}
	if h.metricsPath == "" {
		h.metricsPath = "/metrics"
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}

	h.registerRoutes()
	return h
}

// MetricsPath returns the route of the exposition feed.
func (h *Handler) MetricsPath() string {
	return h.metricsPath
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET "+h.metricsPath, h.handleMetrics)

	h.mux.HandleFunc("GET /objects/{oid}", h.handleGetObject)
	h.mux.HandleFunc("PUT /objects/{oid}", h.handlePutObject)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID(r), data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteError(w, r, status, code, message)
}

// WriteError writes the JSON error envelope. It is shared with the
// middleware of the server package.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse(requestID(r), code, message))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := domain.GetErrorCode(err); code != "" {
		status := StatusForCode(code)
		if status >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		}
		h.writeError(w, r, status, code, err.Error())
		return
	}

	logger.L(r.Context()).Error("internal error", "path", r.URL.Path, "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, "internal server error")
}

// StatusForCode maps a PM-AREA-NNNN code to an HTTP status: the first three
// digits of NNNN are the status.
func StatusForCode(code string) int {
	if len(code) < 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[len(code)-4:])
	if err != nil {
		return http.StatusInternalServerError
	}
	status := n / 10
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

func requestID(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}

type nopObserver struct{}

func (nopObserver) RecordObjectOp(string, error) {}
