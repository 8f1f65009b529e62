package shopify

import (
	"errors"
	"fmt"
)

// RateLimitError is returned when a call still gets 429 after all retries.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("shopify rate limit exceeded after %d attempts", e.Attempts)
}

// UpstreamError is returned when a call still gets a 5xx after all retries.
type UpstreamError struct {
	Status   int
	Body     string
	Attempts int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify server error %d after %d attempts: %s", e.Status, e.Attempts, e.Body)
}

// APIError is a non-retryable error response (4xx other than 429). The
// upstream status and body are surfaced to the caller unchanged.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API error: %d - %s", e.Status, e.Body)
}

// TransportError is a connection-level failure with no HTTP response,
// returned once the retry budget is spent.
type TransportError struct {
	Err      error
	Attempts int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("shopify request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the Admin API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == 404
}

// IsForbidden reports whether err is a 403 from the Admin API, typically a
// missing access scope on the app token.
func IsForbidden(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == 403
}
