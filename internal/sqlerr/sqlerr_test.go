package sqlerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	uniquePg := &pgconn.PgError{Code: "23505", Severity: "ERROR", TableName: "users", ConstraintName: "users_email_key"}
	adminShutdown := &pgconn.PgError{Code: "57P01", Severity: "FATAL"}
	syntaxPg := &pgconn.PgError{Code: "42601", Severity: "ERROR"}
	uniqueLite := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	busyLite := sqlite3.Error{Code: sqlite3.ErrBusy}

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"pgx no rows", pgx.ErrNoRows, errs.ErrNotFound},
		{"sql no rows", fmt.Errorf("get: %w", sql.ErrNoRows), errs.ErrNotFound},
		{"postgres unique", uniquePg, errs.ErrConflict},
		{"postgres shutdown", adminShutdown, errs.ErrStoreUnavailable},
		{"sqlite unique", uniqueLite, errs.ErrConflict},
		{"sqlite busy", busyLite, errs.ErrStoreUnavailable},
		{"bad conn", driver.ErrBadConn, errs.ErrStoreUnavailable},
		{"conn done", sql.ErrConnDone, errs.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, errs.ErrStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Translate(tc.in)
			assert.ErrorIs(t, got, tc.want)
			assert.ErrorIs(t, got, tc.in, "driver error stays in the chain")
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		assert.Same(t, syntaxPg, Translate(syntaxPg))
		assert.Nil(t, Translate(nil))
		assert.ErrorIs(t, Translate(context.Canceled), context.Canceled)
		assert.NotErrorIs(t, Translate(context.Canceled), errs.ErrStoreUnavailable)
	})

	t.Run("already translated", func(t *testing.T) {
		in := fmt.Errorf("%w: x", errs.ErrConflict)
		assert.Same(t, in, Translate(in))
	})
}

func TestTranslateThroughDatabaseSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("socket closed"))

	_, err = db.Exec(`INSERT INTO "users" ("name") VALUES (?)`, "Alice")
	assert.ErrorIs(t, Translate(err), errs.ErrConflict)

	_, err = db.Query(`SELECT * FROM "users"`)
	assert.ErrorIs(t, Unavailable(err), errs.ErrStoreUnavailable)
	assert.NotErrorIs(t, Translate(err), errs.ErrStoreUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapCode(t *testing.T) {
	assert.Equal(t, UniqueViolation, MapCode("23505"))
	assert.Equal(t, ForeignKeyViolation, MapCode("23503"))
	assert.Equal(t, NotNullViolation, MapCode("23502"))
	assert.Equal(t, CheckViolation, MapCode("23514"))
	assert.Equal(t, ConnectionFailure, MapCode("08006"))
	assert.Equal(t, InsufficientRes, MapCode("53300"))
	assert.Equal(t, Other, MapCode("42601"))
	assert.Equal(t, Other, MapCode(""))
	assert.Equal(t, SeverityError, MapSeverity("bogus"))
	assert.Equal(t, SeverityFatal, MapSeverity("FATAL"))
}

func TestHandleError(t *testing.T) {
	status := func(err error) int {
		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		return httpErr.Status
	}

	t.Run("postgres unique names the column", func(t *testing.T) {
		err := HandleError(&pgconn.PgError{Code: "23505", Severity: "ERROR", TableName: "users", ConstraintName: "users_email_key"})
		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusConflict, httpErr.Status)
		assert.Equal(t, "USER_ALREADY_EXISTS", httpErr.Code)
		assert.Equal(t, "A User with this Email already exists", httpErr.Message)
	})

	t.Run("sqlite unique", func(t *testing.T) {
		liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
		err := HandleError(liteErr)
		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusConflict, httpErr.Status)
		assert.Equal(t, "RECORD_ALREADY_EXISTS", httpErr.Code)
	})

	t.Run("sentinels", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, status(HandleError(fmt.Errorf("get 7: %w", errs.ErrNotFound))))
		assert.Equal(t, http.StatusNotFound, status(HandleError(pgx.ErrNoRows)))
		assert.Equal(t, http.StatusConflict, status(HandleError(errs.ErrConflict)))
		assert.Equal(t, http.StatusServiceUnavailable, status(HandleError(errs.ErrStoreUnavailable)))
		assert.Equal(t, http.StatusInternalServerError, status(HandleError(errors.New("boom"))))
	})

	t.Run("http errors pass through", func(t *testing.T) {
		in := errs.NewUnprocessableEntityError("nope", false, nil)
		assert.Same(t, in, HandleError(in))
	})
}

func TestParseSQLiteConstraint(t *testing.T) {
	table, column := parseSQLiteConstraint("UNIQUE constraint failed: users.email")
	assert.Equal(t, "users", table)
	assert.Equal(t, "email", column)

	table, column = parseSQLiteConstraint("database is locked")
	assert.Empty(t, table)
	assert.Empty(t, column)
}

func TestEntityNaming(t *testing.T) {
	assert.Equal(t, "User", getEntityName("", "user_id"))
	assert.Equal(t, "Order Line", getEntityName("order_lines", ""))
	assert.Equal(t, "record", getEntityName("", ""))
	assert.Equal(t, "email", extractColumnForUniqueViolation("unique_users_email"))
	assert.Equal(t, "email", extractColumnForUniqueViolation("users_email_key"))
	assert.Equal(t, "", extractColumnForUniqueViolation("pk"))
	assert.Equal(t, "WIDGET_REQUIRED", generateErrorCode("widgets", NotNullViolation))
}
