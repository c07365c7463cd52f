// Package httpserver provides the HTTP server of plonemetrics-server.
//
// Routes:
//
//   - GET <metrics path>: the exposition feed (default /metrics)
//   - GET /metrics/runtime: the server's own Prometheus metrics
//   - GET /health, GET /ready: liveness and readiness
//   - GET and PUT /objects/{oid}: the hosted object database
//
// Every route runs behind Recover, RequestID and Audit. The two metrics
// routes additionally pass NetworkACL, RateLimit and MetricsAuth, and the
// object and metrics routes are tracked for annotated goroutine dumps.
package httpserver
