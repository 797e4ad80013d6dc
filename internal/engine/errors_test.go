package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestTransportErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want bool
	}{
		{"rate limited", &TransportError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &TransportError{StatusCode: http.StatusBadGateway}, true},
		{"bad request", &TransportError{StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &TransportError{StatusCode: http.StatusUnauthorized}, false},
		{"deadline", &TransportError{Err: context.DeadlineExceeded}, true},
		{"connection refused", &TransportError{Err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED)}, true},
		{"net timeout", &TransportError{Err: timeoutError{}}, true},
		{"canceled", &TransportError{Err: context.Canceled}, false},
		{"decode failure", &TransportError{Err: errors.New("unexpected EOF")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	wrapped := fmt.Errorf("call: %w", &TransportError{Op: "x", StatusCode: http.StatusServiceUnavailable})

	assert.True(t, isRetryableError(wrapped))
	assert.False(t, isRetryableError(errors.New("plain")))
	assert.False(t, isRetryableError(nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "openai chat: HTTP 429: slow down",
		(&TransportError{Op: "openai chat", StatusCode: 429, Err: errors.New("slow down")}).Error())
	assert.Equal(t, "ollama chat: boom", (&TransportError{Op: "ollama chat", Err: errors.New("boom")}).Error())

	cfgErr := &ConfigurationError{Provider: "openai", Reason: "missing API key"}
	assert.Equal(t, "openai provider misconfigured: missing API key", cfgErr.Error())
	assert.ErrorIs(t, cfgErr, ErrNotConfigured)
}
