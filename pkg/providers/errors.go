package providers

import (
	"errors"
	"fmt"
	"time"
)

// ChallengeError reports a proof-of-work challenge whose attempt budget
// was exhausted. It is fatal for the request and never retried.
type ChallengeError struct {
	// Provider is the vendor that issued the challenge
	Provider string

	// Attempts is the number of nonces tried before giving up
	Attempts int
}

// Error implements the error interface.
func (e *ChallengeError) Error() string {
	return fmt.Sprintf("provider %q proof-of-work challenge unsolvable after %d attempts", e.Provider, e.Attempts)
}

// AuthExpiredError reports that a session remained invalid after one
// transparent refresh and retry. The operator must supply a fresh raw
// credential.
type AuthExpiredError struct {
	// Provider is the vendor that rejected the session
	Provider string

	// Message is the vendor error body, if any
	Message string
}

// Error implements the error interface.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("provider %q session expired: %s", e.Provider, e.Message)
}

// TimeoutError reports a network deadline expiry. The transport layer
// retries once before surfacing it.
type TimeoutError struct {
	// Provider is the vendor where the timeout occurred
	Provider string

	// Timeout is the configured deadline
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// TransportError reports a network-level failure (connection reset,
// unreachable host). Retried once, then surfaced.
type TransportError struct {
	// Provider is the vendor where the failure occurred
	Provider string

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %q transport failure: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// MalformedUpstreamError reports a vendor response that violates the
// expected shape. It is surfaced immediately and never retried, since it
// likely indicates a protocol change requiring a code update.
type MalformedUpstreamError struct {
	// Provider is the vendor that returned the malformed payload
	Provider string

	// RawPayload is the payload that failed to parse
	RawPayload string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *MalformedUpstreamError) Error() string {
	return fmt.Sprintf("provider %q malformed upstream payload: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *MalformedUpstreamError) Unwrap() error {
	return e.Cause
}

// UpstreamError reports a vendor protocol failure (4xx/5xx with a vendor
// error body). Not retried by the transport layer.
type UpstreamError struct {
	// Provider is the vendor that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the vendor error body
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q upstream error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q upstream error: %s", e.Provider, e.Message)
}

// ConfigError reports an invalid provider configuration.
type ConfigError struct {
	// Provider is the vendor with invalid configuration
	Provider string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s", e.Provider, e.Field, e.Message)
}

// ValidationError reports an invalid chat request, detected before any
// network call.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// ErrorKind classifies an error into the gateway's taxonomy for metrics
// and for the terminal Error event.
func ErrorKind(err error) string {
	var challenge *ChallengeError
	var auth *AuthExpiredError
	var timeout *TimeoutError
	var transport *TransportError
	var malformed *MalformedUpstreamError
	var upstream *UpstreamError
	var validation *ValidationError

	switch {
	case errors.As(err, &challenge):
		return "challenge_unsolvable"
	case errors.As(err, &auth):
		return "auth_expired"
	case errors.As(err, &timeout):
		return "upstream_timeout"
	case errors.As(err, &transport):
		return "upstream_transport"
	case errors.As(err, &malformed):
		return "malformed_upstream"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.As(err, &validation):
		return "validation"
	default:
		return "internal"
	}
}
