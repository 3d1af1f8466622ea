package cricbuzz

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrCircuitOpen is returned while the circuit breaker rejects calls
var ErrCircuitOpen = errors.New("cricbuzz circuit breaker is open")

// RateLimitError represents a 429 from RapidAPI
type RateLimitError struct {
	StatusCode int
	RetryAfter string
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limit exceeded (status %d), retry after: %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (status %d): %s", e.StatusCode, e.Message)
}

// RetryAfterDelay parses Retry-After as seconds; 0 when absent or unparseable.
func (e *RateLimitError) RetryAfterDelay() time.Duration {
	if e.RetryAfter == "" {
		return 0
	}
	secs, err := strconv.Atoi(e.RetryAfter)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// APIError represents any other non-200 response
type APIError struct {
	StatusCode int
	Route      string
	Message    string
}

func (e *APIError) Error() string {
	if e.Route != "" {
		return fmt.Sprintf("API error (status %d) on %s: %s", e.StatusCode, e.Route, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is worth another attempt: rate limits, 5xx and
// transport failures are; client errors, decode failures and an open circuit are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	return !errors.Is(err, ErrCircuitOpen)
}

// IsNotFound reports a 404 from the API, which Cricbuzz returns for matches without data yet
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// DecodeError wraps a malformed response body
type DecodeError struct {
	Route string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Route, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
