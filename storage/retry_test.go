package storage

import (
	"errors"
	"testing"
	"time"
)

type statusError struct {
	status int
}

func (e *statusError) Error() string       { return "response error" }
func (e *statusError) HTTPStatusCode() int { return e.status }

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", p.MaxAttempts)
	}
	if p.BackoffFactor != 200*time.Millisecond {
		t.Fatalf("unexpected backoff factor: %v", p.BackoffFactor)
	}
}

func TestRetryableStatuses(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &statusError{status: 500}, true},
		{"bad gateway", &statusError{status: 502}, true},
		{"unavailable", &statusError{status: 503}, true},
		{"gateway timeout", &statusError{status: 504}, true},
		{"not found", &statusError{status: 404}, false},
		{"forbidden", &statusError{status: 403}, false},
		{"wrapped unavailable", errors.Join(errors.New("op failed"), &statusError{status: 503}), true},
		{"no status", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Retryable(tt.err); got != tt.retryable {
				t.Fatalf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := p.Delay(attempt); got != expected {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestBuildRetryerHonorsPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	r := p.Build()
	if got := r.MaxAttempts(); got != p.MaxAttempts {
		t.Fatalf("retryer reports %d attempts, want %d", got, p.MaxAttempts)
	}
	if !r.IsErrorRetryable(&statusError{status: 503}) {
		t.Fatal("503 must be retryable")
	}
	if r.IsErrorRetryable(&statusError{status: 404}) {
		t.Fatal("404 must not be retryable")
	}
}
