// Package main provides the entry point for plonemetrics-server.
//
// The server hosts an object database and exposes its runtime health as a
// Prometheus text feed:
//
//   - GET /metrics: cache, activity, per-connection and goroutine metrics,
//     every sample labelled with plone_service_name
//   - GET /metrics/runtime: the server's own client_golang metrics
//   - GET /health and GET /ready
//   - GET and PUT /objects/{oid}: the object API that drives the caches
//
// Usage:
//
//	plonemetrics-server [flags]
//	plonemetrics-server --config /etc/plonemetrics/config.yaml
//
// Configuration comes from defaults, then the optional YAML file, then the
// SERVICE_NAME variable, then PLONEMETRICS_* variables. When a file is
// given it is watched and the log level, goroutine dump switch and activity
// window are applied without a restart.
//
// With server.http.tls_cert_file and tls_key_file set the server speaks
// HTTPS and reloads the key pair when either file changes. Adding
// tls_client_ca_file requires scrapers to present a client certificate.
package main
