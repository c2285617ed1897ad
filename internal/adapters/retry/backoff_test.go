package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"connection refused", &net.OpError{Err: syscall.ECONNREFUSED}, true},
		{"connection reset", &net.OpError{Err: syscall.ECONNRESET}, true},
		{"broken pipe", &net.OpError{Err: syscall.EPIPE}, true},
		{"nxdomain", &net.DNSError{IsNotFound: true}, false},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"generic", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryableError(tt.err); got != tt.want {
				t.Errorf("RetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryableStatus(t *testing.T) {
	retryable := []int{http.StatusRequestTimeout, http.StatusTooManyRequests, 500, 502, 503, 504}
	for _, code := range retryable {
		if !RetryableStatus(code) {
			t.Errorf("RetryableStatus(%d) = false, want true", code)
		}
	}
	terminal := []int{200, 201, 400, 401, 403, 404, 409}
	for _, code := range terminal {
		if RetryableStatus(code) {
			t.Errorf("RetryableStatus(%d) = true, want false", code)
		}
	}
}

func TestWithBackoffHTTPSucceedsFirstTry(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		return http.StatusOK, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithBackoffHTTPRecoversFromTransientStatus(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithBackoffHTTPRecoversFromTransportError(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &net.OpError{Err: syscall.ECONNREFUSED}
		}
		return http.StatusOK, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWithBackoffHTTPDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		return http.StatusUnauthorized, nil
	})
	if err == nil {
		t.Fatal("expected an error for 401")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithBackoffHTTPExhaustsBudget(t *testing.T) {
	cfg := fastConfig()
	attempts := 0
	err := WithBackoffHTTP(context.Background(), cfg, func() (int, error) {
		attempts++
		return http.StatusInternalServerError, nil
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != cfg.MaxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, cfg.MaxRetries+1)
	}
}

func TestWithBackoffHTTPStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithBackoffHTTP(ctx, fastConfig(), func() (int, error) {
		attempts++
		cancel()
		return http.StatusServiceUnavailable, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
