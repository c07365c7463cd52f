// Package connection provides the HTTP client plonemetrics-cli uses to talk
// to a plonemetrics-server.
package connection
