package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("PM-TEST-1000", "test message"),
			expected: "[PM-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("PM-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[PM-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("PM-TEST-1000", "message 1")
	err2 := NewDomainError("PM-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("PM-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("PM-TEST-1000", "wrapper").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestUpstreamFailureWrappedAsUnavailable(t *testing.T) {
	upstream := ErrUpstreamQueryFailure.WithCause(fmt.Errorf("monitor exploded"))
	err := ErrCollectionUnavailable.WithDetails("activity").WithCause(upstream)

	if !errors.Is(err, ErrCollectionUnavailable) {
		t.Error("expected ErrCollectionUnavailable")
	}
	if !errors.Is(err, ErrUpstreamQueryFailure) {
		t.Error("expected ErrUpstreamQueryFailure in chain")
	}
	if got := GetErrorCode(err); got != "PM-COLL-5030" {
		t.Errorf("GetErrorCode() = %q, want PM-COLL-5030", got)
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("scrape: %w", ErrMalformedMetricName.WithDetails("1bad"))

	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError(err, \"\") should be true")
	}
	if !IsDomainError(wrapped, "PM-EXPO-5001") {
		t.Error("IsDomainError should match the code")
	}
	if IsDomainError(wrapped, "PM-EXPO-5002") {
		t.Error("IsDomainError should not match another code")
	}
	if IsDomainError(fmt.Errorf("plain"), "") {
		t.Error("plain errors are not domain errors")
	}
	if GetErrorCode(fmt.Errorf("plain")) != "" {
		t.Error("GetErrorCode of a plain error should be empty")
	}
}
