// Package middleware holds the HTTP middleware chain: request ids,
// request logging, panic recovery, and per-client rate limiting.
package middleware

// contextKey is the private type for request-scoped context values.
type contextKey string

// RequestIDHeader is the header carrying the request id.
const RequestIDHeader = "X-Request-ID"

// RequestIDContextKey is the context key for the request id.
const RequestIDContextKey contextKey = "request_id"
