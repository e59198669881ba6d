// Package errs defines the error vocabulary of the service.
//
// It holds two families of errors:
//   - store sentinels (ErrNotFound, ErrConflict, ErrStoreUnavailable) that
//     persistence adapters wrap and handlers test with errors.Is;
//   - HTTPError, the JSON error shape every failed request is answered with.
//
// ConfigError covers startup-time failures (bad descriptors, prefix
// collisions) which must never be deferred to request time.
package errs
