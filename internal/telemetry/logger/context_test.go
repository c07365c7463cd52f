package logger

import (
	"bytes"
	"context"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("hello")

	if buf.Len() == 0 {
		t.Error("logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) != Default() {
		t.Error("FromContext should fall back to the default logger")
	}
	if FromContext(WithLogger(context.Background(), nil)) != Default() {
		t.Error("nil logger in context should fall back to the default logger")
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "01J0000000000000000000000")
	if got := RequestIDFromContext(ctx); got != "01J0000000000000000000000" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() on empty context = %q", got)
	}
}

func TestL(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
	}{
		{name: "with request id", requestID: "req-123"},
		{name: "without request id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "info", Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			ctx := WithLogger(context.Background(), l)
			if tt.requestID != "" {
				ctx = WithRequestID(ctx, tt.requestID)
			}
			L(ctx).Info("request served")

			entry := decode(t, &buf)
			got, ok := entry["request_id"]
			if tt.requestID == "" {
				if ok {
					t.Errorf("unexpected request_id %v", got)
				}
				return
			}
			if got != tt.requestID {
				t.Errorf("request_id = %v, want %s", got, tt.requestID)
			}
		})
	}
}

func TestContextKeyCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "plonemetrics.request_id", "other") //nolint:staticcheck
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("plain string key should not collide, got %q", got)
	}
}
