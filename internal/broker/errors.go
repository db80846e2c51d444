// errors.go defines the domain error kinds the broker layer surfaces.
//
// Callers branch with errors.As/Is:
//
//   - TimeoutError:      per-request deadline expired; the socket stays up.
//   - BrokerError:       server-side rejection; returned to the request owner.
//   - AuthError:         non-retryable; surfaces from Connect.
//   - RateLimitError:    request-frequency rejection; caller backs off 5s, ≤3 tries.
//   - ErrDisconnected:   the socket closed while requests were pending.
package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDisconnected fails every pending request when the socket closes.
var ErrDisconnected = errors.New("broker disconnected")

// ErrNotConnected is returned when a request is attempted with no session.
var ErrNotConnected = errors.New("broker not connected")

// TimeoutError reports a request that did not receive its response in time.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.Name, e.Timeout)
}

// BrokerError is a server-side rejection decoded from the error response
// payload or an order error event.
type BrokerError struct {
	Code        string
	Description string
}

func (e *BrokerError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("broker error %s", e.Code)
	}
	return fmt.Sprintf("broker error %s: %s", e.Code, e.Description)
}

// AuthError wraps a failure during the authentication sequence.
// It is never retried by the reconnect loop.
type AuthError struct {
	Stage string // "app_auth", "get_accounts", "account_auth"
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed at %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError marks a request the broker rejected for frequency.
type RateLimitError struct {
	Op  string
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited during %s: %v", e.Op, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// rateLimitMarkers are the substrings that identify a frequency rejection
// regardless of which wording the broker picked.
var rateLimitMarkers = []string{"429", "rate", "limit", "frequency", "too many"}

// IsRateLimitMessage reports whether an error text looks like a
// request-frequency rejection.
func IsRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// authErrorCodes are broker error codes that must not be retried.
var authErrorCodes = map[string]bool{
	"INVALID_CLIENT_ID":      true,
	"INVALID_CLIENT_SECRET":  true,
	"CH_CLIENT_AUTH_FAILURE": true,
	"INVALID_TOKEN":          true,
	"ACCESS_DENIED":          true,
}

// IsAuthErrorCode reports whether a broker error code is an auth failure.
func IsAuthErrorCode(code string) bool { return authErrorCodes[code] }

// authFailure classifies an error from one auth stage. Credential
// rejections become AuthError and stop the reconnect loop; transport
// failures (timeouts, disconnects) stay retryable.
func authFailure(stage string, err error) error {
	var be *BrokerError
	if errors.As(err, &be) && IsAuthErrorCode(be.Code) {
		return &AuthError{Stage: stage, Err: err}
	}
	return fmt.Errorf("%s: %w", stage, err)
}
