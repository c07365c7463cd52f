package httpserver

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/internal/server/httpserver/handler"
	"github.com/yndnr/plonemetrics-go/internal/telemetry/logger"
	"github.com/yndnr/plonemetrics-go/pkg/cmap"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains middlewares. The first one runs outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID assigns every request a ULID, or keeps the one the client sent.
// The ID is echoed in the response and stored in the context for logger.L.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
		})
	}
}

// Recover turns a panic into a 500 response.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", fmt.Sprint(rec),
						"path", r.URL.Path,
					)
					handler.WriteError(w, r, http.StatusInternalServerError,
						domain.ErrInternalServer.Code, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestRecorder receives per-request metrics.
type RequestRecorder interface {
	RecordRequest(method, route, status string)
	ObserveRequestDuration(method, route string, seconds float64)
	IncInflight()
	DecInflight()
}

// Audit logs every request and records its metrics. route names the route
// in metrics so that path parameters do not explode label cardinality.
func Audit(log *slog.Logger, recorder RequestRecorder, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if recorder != nil {
				recorder.IncInflight()
				defer recorder.DecInflight()
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			if recorder != nil {
				recorder.RecordRequest(r.Method, route, strconv.Itoa(wrapped.statusCode))
				recorder.ObserveRequestDuration(r.Method, route, duration.Seconds())
			}

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"bytes", wrapped.written,
				"duration_ms", duration.Milliseconds(),
				"client_ip", clientIP(r),
			}
			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Debug("request completed", attrs...)
			}
		})
	}
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Rate is the sustained requests per second per client.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
	// OnLimited is called for every rejected request. Optional.
	OnLimited func()
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// sweepEvery is the number of requests between idle bucket sweeps.
const sweepEvery = 1024

// RateLimit applies a token bucket per client IP.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	clients := cmap.New[string, *clientLimiter]()
	var requests atomic.Uint64

	sweep := func(now time.Time) {
		cutoff := now.Add(-cfg.IdleTTL).UnixNano()
		clients.DeleteFunc(func(_ string, c *clientLimiter) bool {
			return c.lastSeen.Load() < cutoff
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			if requests.Add(1)%sweepEvery == 0 {
				sweep(now)
			}

			c, _ := clients.GetOrSet(clientIP(r), &clientLimiter{
				limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
			})
			c.lastSeen.Store(now.UnixNano())

			if !c.limiter.AllowN(now, 1) {
				if cfg.OnLimited != nil {
					cfg.OnLimited()
				}
				w.Header().Set("Retry-After", "1")
				handler.WriteError(w, r, http.StatusTooManyRequests,
					domain.ErrRateLimited.Code, domain.ErrRateLimited.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsAuth requires "Authorization: Bearer <token>" when token is not
// empty. onFailure is optional and receives the failure reason.
func MetricsAuth(token string, onFailure func(reason string)) Middleware {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			reason := ""
			switch {
			case !ok:
				reason = "missing"
			case subtle.ConstantTimeCompare([]byte(presented), expected) != 1:
				reason = "mismatch"
			}
			if reason != "" {
				if onFailure != nil {
					onFailure(reason)
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="plonemetrics"`)
				handler.WriteError(w, r, http.StatusUnauthorized,
					domain.ErrUnauthorized.Code, domain.ErrUnauthorized.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// NetworkACL rejects clients outside allowList. An empty list allows all.
// Invalid entries are logged and skipped.
func NetworkACL(allowList []string, log *slog.Logger) Middleware {
	var networks []*net.IPNet
	var singleIPs []net.IP

	for _, entry := range allowList {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				log.Warn("invalid CIDR in allowlist", "entry", entry, "error", err)
				continue
			}
			networks = append(networks, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			log.Warn("invalid IP in allowlist", "entry", entry)
			continue
		}
		singleIPs = append(singleIPs, ip)
	}

	return func(next http.Handler) http.Handler {
		if len(networks) == 0 && len(singleIPs) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientIP(r)
			if ip := net.ParseIP(addr); ip != nil {
				for _, allowed := range singleIPs {
					if allowed.Equal(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
				for _, network := range networks {
					if network.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			log.Warn("request denied by network ACL", "client_ip", addr, "path", r.URL.Path)
			handler.WriteError(w, r, http.StatusForbidden,
				domain.ErrIPNotAllowed.Code, domain.ErrIPNotAllowed.Message)
		})
	}
}

// RequestTracker records which goroutine serves which request.
type RequestTracker interface {
	Begin(info domain.RequestInfo) (end func())
}

// Track registers the request with tracker for the duration of the call.
func Track(tracker RequestTracker) Middleware {
	return func(next http.Handler) http.Handler {
		if tracker == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			end := tracker.Begin(domain.RequestInfo{
				Method: r.Method,
				Path:   r.URL.Path,
				Query:  r.URL.RawQuery,
			})
			defer end()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// clientIP returns the peer address. Forwarding headers are not trusted
// because the allowlist and rate limit key on this value.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
