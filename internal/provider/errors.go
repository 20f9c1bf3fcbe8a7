package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Cloud API error codes that signal throttling on the sender or recipient
// side rather than a malformed request.
var throttlingErrorCodes = map[int]struct{}{
	130429: {}, // throughput limit reached
	131048: {}, // spam rate limit hit
	131056: {}, // pair rate limit hit
}

// ProviderError describes a failed provider call. Code and Details carry the
// provider's own error classification when the response body includes one.
type ProviderError struct {
	StatusCode int
	Code       int
	Message    string
	Details    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if details := strings.TrimSpace(e.Details); details != "" {
		parts = append(parts, details)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failure is likely to succeed on a later send.
// The dispatcher does not retry; the result only labels failure metrics.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		if _, ok := throttlingErrorCodes[providerErr.Code]; ok {
			return true
		}
		if providerErr.StatusCode > 0 {
			return isTransientHTTPStatus(providerErr.StatusCode)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
