// Package domain defines the core domain models for plonemetrics.
//
// Domain models are pure value objects without IO dependencies or
// framework coupling. This package contains:
//
//   - ServiceIdentity: the label attached to every exported metric
//   - ActivityWindow: the trailing window queried on the activity monitor
//   - ConnectionCacheDetail: per-connection object cache sizing
//   - ThreadSnapshot: one goroutine of a diagnostic stack dump
//   - Errors: domain-specific error definitions
//
// Every value here is built fresh for a single scrape and discarded once
// the response has been written.
package domain
