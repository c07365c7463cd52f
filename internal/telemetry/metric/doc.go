// Package metric provides the process's own Prometheus metrics.
//
// The exposition feed served on the metrics path is rendered by hand (see
// package exposition) because its byte layout is fixed. Everything the
// process reports about itself goes through a client_golang registry
// instead:
//
//   - Scrape counts and durations, per collector failures
//   - HTTP request counts and latencies
//   - Config reloads, auth and rate limit rejections
//   - Go runtime, process and build information
//
// These are served on the runtime metrics path in Prometheus format.
package metric
