// Package middleware holds the global middleware of the HTTP surface:
// request ids, request-scoped logging, tracing, rate limiting, CORS,
// panic recovery and the global error handler.
package middleware
