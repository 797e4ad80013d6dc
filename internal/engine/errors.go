package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrNotConfigured is returned when no usable model provider is configured.
var ErrNotConfigured = errors.New("model provider not configured")

// ConfigurationError explains why a provider cannot be used.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s provider misconfigured: %s", e.Provider, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// TransportError is a failed call to a remote model.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.Retryable()
}
