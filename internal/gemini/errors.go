package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Closed set of tagged error variants. The retry loop switches on these
// instead of inspecting transport exceptions.
var (
	// ErrTimeout covers request deadlines and stalled streams. Retryable.
	ErrTimeout = errors.New("gemini: request timed out")
	// ErrOverloaded covers HTTP 429 and 500. Retryable.
	ErrOverloaded = errors.New("gemini: model overloaded")
	// ErrUnavailable covers HTTP 503 and transport-level failures. Retryable.
	ErrUnavailable = errors.New("gemini: service unavailable")
	// ErrInvalidRequest covers HTTP 400. Not retryable.
	ErrInvalidRequest = errors.New("gemini: invalid request")
	// ErrAuthFailed covers HTTP 401 and 403. Not retryable.
	ErrAuthFailed = errors.New("gemini: authentication failed")
	// ErrBlocked marks a safety-filtered response with no candidates. Not retryable.
	ErrBlocked = errors.New("gemini: response blocked")
)

// APIError carries the provider's error payload alongside its tag.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	tag        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.tag
}

// IsRetryable reports whether the error class is transient. Anything else
// is final and must not consume retry budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOverloaded) ||
		errors.Is(err, ErrUnavailable)
}

// classifyStatus maps an HTTP status to its error tag.
func classifyStatus(status int) error {
	switch {
	case status == 400:
		return ErrInvalidRequest
	case status == 401 || status == 403:
		return ErrAuthFailed
	case status == 429 || status == 500:
		return ErrOverloaded
	case status == 503:
		return ErrUnavailable
	default:
		return ErrInvalidRequest
	}
}

// classifyTransport maps a transport-level failure to its error tag.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
