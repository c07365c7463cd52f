// Package inflight tracks which HTTP request each goroutine is serving so
// that goroutine dumps can be annotated with the request.
//
// Tracking costs a stack header read per request and is therefore off until
// SetEnabled(true) is called; the goroutine dump collector turns it on.
package inflight

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
	"github.com/yndnr/plonemetrics-go/pkg/cmap"
)

// Registry maps goroutine ids to the request they serve.
type Registry struct {
	enabled atomic.Bool
	reqs    *cmap.Map[uint64, domain.RequestInfo]
}

// New creates a disabled registry.
func New() *Registry {
	return &Registry{
		reqs: cmap.New[uint64, domain.RequestInfo](),
	}
}

// SetEnabled switches tracking on or off. Switching off forgets every
// tracked request.
func (r *Registry) SetEnabled(on bool) {
	if !r.enabled.Swap(on) || on {
		return
	}
	r.reqs.Clear()
}

// Enabled reports whether requests are being tracked.
func (r *Registry) Enabled() bool {
	return r.enabled.Load()
}

// Begin records info for the calling goroutine and returns the function that
// removes it again. It is a no-op while the registry is disabled.
func (r *Registry) Begin(info domain.RequestInfo) (end func()) {
	if !r.enabled.Load() {
		return func() {}
	}
	gid := CurrentGoroutineID()
	if gid == 0 {
		return func() {}
	}
	r.reqs.Set(gid, info)
	return func() { r.reqs.Delete(gid) }
}

// Lookup returns the request served by goroutine gid.
func (r *Registry) Lookup(gid uint64) (domain.RequestInfo, bool) {
	return r.reqs.Get(gid)
}

// Len returns the number of tracked requests.
func (r *Registry) Len() int {
	return r.reqs.Count()
}

var goroutinePrefix = []byte("goroutine ")

// CurrentGoroutineID returns the id of the calling goroutine, or 0 if the
// stack header cannot be parsed.
func CurrentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return ParseGoroutineID(buf[:n])
}

// ParseGoroutineID extracts the id from a "goroutine N [state]:" header.
func ParseGoroutineID(header []byte) uint64 {
	if !bytes.HasPrefix(header, goroutinePrefix) {
		return 0
	}
	header = header[len(goroutinePrefix):]
	end := bytes.IndexByte(header, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(header[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
