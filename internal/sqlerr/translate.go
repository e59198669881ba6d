package sqlerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Translate folds a driver error into the errs sentinels, keeping the
// original error in the chain:
//
//   - no rows                          -> errs.ErrNotFound
//   - constraint violations            -> errs.ErrConflict
//   - connection loss, busy/locked db,
//     pool exhaustion, timeouts        -> errs.ErrStoreUnavailable
//
// Anything else is returned unchanged. Context cancellation is left alone:
// the client went away and the error handler treats it as such.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrStoreUnavailable) {
		return err
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := MapCode(pgErr.Code)
		switch {
		case code.IsConstraint():
			return fmt.Errorf("%w: %w", errs.ErrConflict, err)
		case code.IsUnavailable():
			return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %w", errs.ErrConflict, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrFull:
			return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		pgconn.Timeout(err):
		return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
	}

	return err
}

// Unavailable wraps err (typically from acquiring a connection) as
// errs.ErrStoreUnavailable regardless of its shape.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, errs.ErrStoreUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
}
