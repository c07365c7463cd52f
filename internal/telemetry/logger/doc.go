// Package logger configures structured logging for plonemetrics.
//
// It builds log/slog handlers from configuration:
//
//   - logger.go: handler construction and runtime level changes
//   - context.go: request-scoped loggers carrying the request ID
//   - redact.go: masking of scrape tokens and other secrets
//
// The level is shared by every logger created here, so SetLevel takes
// effect immediately on a configuration reload.
package logger
