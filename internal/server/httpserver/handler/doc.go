// Package handler provides the HTTP handlers of plonemetrics-server.
//
//   - metrics.go: the Prometheus exposition feed
//   - health.go: liveness and readiness
//   - objects.go: object reads and writes on the hosted database
//
// Errors are written as a JSON envelope with the domain error code, which
// is repeated in the X-Error-Code header.
package handler
