// Package sqlerr interprets database driver errors.
//
// Translate runs inside the persistence adapters and folds pgx and SQLite
// errors into the errs sentinels (not found, conflict, store unavailable).
// HandleError runs in the HTTP error handler and turns whatever reached it
// into an *errs.HTTPError with a client-friendly message.
package sqlerr
