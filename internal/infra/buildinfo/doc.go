// Package buildinfo exposes version information of the plonemetrics
// binaries.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/plonemetrics-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not, Get falls back to the module and VCS data embedded by
// the Go toolchain.
package buildinfo
