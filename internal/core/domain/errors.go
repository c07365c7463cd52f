// Package domain defines the core domain models for plonemetrics.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the PM-<AREA>-<NNNN> scheme: the last four digits mirror the
// closest HTTP status followed by a sequence digit.
type DomainError struct {
	Code    string // Error code (e.g., "PM-STOR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Collection Errors (COLL)
// ============================================================================

var (
	// ErrCollectionUnavailable indicates a subsystem handle is missing or closed.
	// The collector's contribution is skipped; the scrape continues.
	ErrCollectionUnavailable = NewDomainError("PM-COLL-5030", "collection unavailable")

	// ErrUpstreamQueryFailure indicates a subsystem query failed.
	ErrUpstreamQueryFailure = NewDomainError("PM-COLL-5020", "upstream query failure")

	// ErrAllCollectorsFailed indicates no collector produced output.
	ErrAllCollectorsFailed = NewDomainError("PM-COLL-5000", "all collectors failed")
)

// ============================================================================
// Exposition Errors (EXPO)
// ============================================================================

var (
	// ErrMalformedMetricName indicates a metric or label name violates the
	// exposition token rules. This is a programming error.
	ErrMalformedMetricName = NewDomainError("PM-EXPO-5001", "malformed metric name")

	// ErrMalformedMetricValue indicates a sample value that is not numeric.
	ErrMalformedMetricValue = NewDomainError("PM-EXPO-5002", "malformed metric value")

	// ErrMalformedExposition indicates text that does not parse as exposition format.
	ErrMalformedExposition = NewDomainError("PM-EXPO-4001", "malformed exposition text")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrObjectNotFound indicates the requested object id does not exist.
	ErrObjectNotFound = NewDomainError("PM-STOR-4040", "object not found")

	// ErrDatabaseClosed indicates the object database is closed or shutting down.
	ErrDatabaseClosed = NewDomainError("PM-STOR-5030", "database closed")

	// ErrInvalidWindow indicates an activity analysis window is empty or has
	// no divisions.
	ErrInvalidWindow = NewDomainError("PM-STOR-4000", "invalid activity window")

	// ErrObjectTooLarge indicates an object state above the configured limit.
	ErrObjectTooLarge = NewDomainError("PM-STOR-4130", "object too large")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("PM-SYS-5000", "internal server error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("PM-SYS-4000", "bad request")

	// ErrUnauthorized indicates missing or wrong scrape credentials.
	ErrUnauthorized = NewDomainError("PM-SYS-4010", "unauthorized")

	// ErrIPNotAllowed indicates the client IP is not in the allowlist.
	ErrIPNotAllowed = NewDomainError("PM-SYS-4031", "ip not in allowlist")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("PM-SYS-4290", "too many requests")
)
