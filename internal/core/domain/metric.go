// Package domain defines the core domain models for plonemetrics.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Service identity defaults.
const (
	// ServiceNameLabel is the label carried by every exported metric.
	ServiceNameLabel = "plone_service_name"

	// DefaultServiceName is used when no service name is configured.
	DefaultServiceName = "local-plone"
)

// ServiceIdentity identifies the service instance a scrape belongs to.
type ServiceIdentity struct {
	Name string
}

// NewServiceIdentity returns the identity for name, falling back to
// DefaultServiceName when name is blank.
func NewServiceIdentity(name string) ServiceIdentity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultServiceName
	}
	return ServiceIdentity{Name: name}
}

// LabelName returns the exposition label name of the identity.
func (s ServiceIdentity) LabelName() string {
	return ServiceNameLabel
}

// LabelValue returns the exposition label value of the identity.
func (s ServiceIdentity) LabelValue() string {
	if s.Name == "" {
		return DefaultServiceName
	}
	return s.Name
}

// Activity window defaults.
//
// DefaultActivityWindow assumes the collector scrapes every 15 seconds. When
// the real scrape interval differs, load and store counters are either counted
// twice or missed between scrapes, so the width must be configured to match.
const (
	DefaultActivityWindow    = 15 * time.Second
	DefaultActivityDivisions = 1
)

// ActivityWindow is the trailing time range queried on the activity monitor.
type ActivityWindow struct {
	Start     time.Time
	End       time.Time
	Divisions int
}

// TrailingWindow returns the window of the given width ending at now.
func TrailingWindow(now time.Time, width time.Duration, divisions int) ActivityWindow {
	if width <= 0 {
		width = DefaultActivityWindow
	}
	if divisions < 1 {
		divisions = DefaultActivityDivisions
	}
	return ActivityWindow{
		Start:     now.Add(-width),
		End:       now,
		Divisions: divisions,
	}
}

// Width returns the duration covered by the window.
func (w ActivityWindow) Width() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks that the window is non-empty and has at least one division.
func (w ActivityWindow) Validate() error {
	if !w.End.After(w.Start) {
		return ErrInvalidWindow.WithDetails("end must be after start")
	}
	if w.Divisions < 1 {
		return ErrInvalidWindow.WithDetails("divisions must be at least 1")
	}
	return nil
}

// ConnectionCacheDetail describes the object cache of one storage connection.
//
// Total counts every cached object including ghosts; Active counts only the
// objects whose state is loaded. Active == 0 with Total > 0 is valid.
type ConnectionCacheDetail struct {
	ConnectionID int
	Active       int
	Total        int
}

// Inactive returns the number of ghost objects in the cache.
func (d ConnectionCacheDetail) Inactive() int {
	return d.Total - d.Active
}

// SortConnectionCacheDetails returns a copy of details ordered by connection id.
func SortConnectionCacheDetails(details []ConnectionCacheDetail) []ConnectionCacheDetail {
	sorted := slices.Clone(details)
	slices.SortStableFunc(sorted, func(a, b ConnectionCacheDetail) int {
		return a.ConnectionID - b.ConnectionID
	})
	return sorted
}

// RequestInfo describes an in-flight HTTP request.
type RequestInfo struct {
	Method string
	Path   string
	Query  string
}

// String renders the request as "METHOD path?query".
func (r RequestInfo) String() string {
	s := r.Method + " " + r.Path
	if r.Query != "" {
		s += "?" + r.Query
	}
	return s
}

// ThreadSnapshot is one goroutine of a diagnostic stack dump.
type ThreadSnapshot struct {
	ID      uint64
	State   string
	Request *RequestInfo
	Stack   string
}
