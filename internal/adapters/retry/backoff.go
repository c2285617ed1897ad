// Package retry wraps outbound HTTP calls to LLM and embedding providers
// with exponential backoff. Only transient failures are retried; auth and
// validation failures surface immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	Multiplier      float64
}

// HTTPConfig is tuned for user-facing provider calls: a short first backoff
// so a transient 429/5xx does not stall a chat turn for a full second.
func HTTPConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     15 * time.Second,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

// RetryableError reports whether a transport error is worth another
// attempt. Context cancellation and NXDOMAIN are terminal.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.EPIPE)
	}

	return false
}

// RetryableStatus reports whether an HTTP status from the provider is
// transient: 408, 429 and any 5xx.
func RetryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout:
		return true
	case statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500 && statusCode < 600:
		return true
	}
	return false
}

// WithBackoffHTTP runs fn until it returns a 2xx status, a terminal
// failure, or the retry budget is spent. fn reports the status it saw
// alongside any transport error; a status of 0 means the request never
// completed.
func WithBackoffHTTP(ctx context.Context, cfg BackoffConfig, fn func() (int, error)) error {
	var lastErr error
	var lastStatus int
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		statusCode, err := fn()
		lastStatus = statusCode
		lastErr = err

		if err == nil && statusCode >= 200 && statusCode < 300 {
			return nil
		}

		retryable := RetryableError(err)
		if err == nil && statusCode > 0 {
			retryable = RetryableStatus(statusCode)
		}
		if !retryable {
			if err != nil {
				return fmt.Errorf("request failed on attempt %d (status %d): %w", attempt+1, statusCode, err)
			}
			return fmt.Errorf("request rejected with status %d on attempt %d", statusCode, attempt+1)
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
		if interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}

	if lastErr != nil {
		return fmt.Errorf("giving up after %d retries (status %d): %w", cfg.MaxRetries, lastStatus, lastErr)
	}
	return fmt.Errorf("giving up after %d retries with status %d", cfg.MaxRetries, lastStatus)
}
