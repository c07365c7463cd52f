// Package service provides the domain services of plonemetrics.
//
// Domain services orchestrate collectors and storage behind small
// interfaces, so they can be driven by fakes in tests:
//
//   - ScrapeService: runs the collectors and renders the exposition feed
//   - ObjectService: object reads and writes on the hosted database
//
// Both are safe for concurrent use.
package service
