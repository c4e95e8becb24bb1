// Package middleware provides the HTTP middleware chain of the gateway:
// panic recovery, request identifiers, access logging and CORS.
package middleware

// contextKey is a private type for context values set by this package.
type contextKey string

const (
	// RequestIDKey is the context key holding the request identifier.
	RequestIDKey contextKey = "request_id"
)
