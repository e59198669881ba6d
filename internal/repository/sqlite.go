package repository

import (
	"context"
	"iter"

	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/sqlerr"
	"github.com/jmoiron/sqlx"
)

// SQLite stores a resource in a SQLite table through sqlx. A session holds
// one connection of the database/sql pool.
type SQLite struct {
	db   *sqlx.DB
	desc *resource.Descriptor
	sql  builder
}

type sqliteSession struct {
	conn  *sqlx.Conn
	guard *sessionGuard
}

func (s *sqliteSession) Release() {
	s.guard.release(func() { _ = s.conn.Close() })
}

// NewSQLite returns an adapter for desc on db. The table must exist; see
// Migrations.
func NewSQLite(db *sqlx.DB, desc *resource.Descriptor) *SQLite {
	return &SQLite{
		db:   db,
		desc: desc,
		sql:  newBuilder(sqliteDialect, desc),
	}
}

func (s *SQLite) Store() string { return resource.StoreSQLite }

func (s *SQLite) Ping(ctx context.Context) error {
	return sqlerr.Unavailable(s.db.PingContext(ctx))
}

func (s *SQLite) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, observe(s.Store(), s.desc.Name, sqlerr.Unavailable(err))
	}
	return &sqliteSession{conn: conn, guard: openGuard(s.Store(), s.desc.Name)}, nil
}

func (s *SQLite) conn(sess Session) (*sqlx.Conn, error) {
	ss, ok := sess.(*sqliteSession)
	if !ok || ss.conn == nil {
		return nil, errForeignSession
	}
	return ss.conn, nil
}

func (s *SQLite) fail(err error) error {
	return observe(s.Store(), s.desc.Name, sqlerr.Translate(err))
}

func (s *SQLite) Create(ctx context.Context, sess Session, rec Record) (int64, error) {
	conn, err := s.conn(sess)
	if err != nil {
		return 0, err
	}
	if err := checkColumns(s.desc, sortedKeys(rec)); err != nil {
		return 0, err
	}

	stmt := s.sql.insert(compact(rec))
	var id int64
	if err := conn.QueryRowxContext(ctx, stmt.sql, stmt.args...).Scan(&id); err != nil {
		return 0, s.fail(err)
	}
	return id, nil
}

func (s *SQLite) Get(ctx context.Context, sess Session, id int64) (Record, error) {
	conn, err := s.conn(sess)
	if err != nil {
		return nil, err
	}
	return s.one(ctx, conn, s.sql.get(id))
}

func (s *SQLite) one(ctx context.Context, conn *sqlx.Conn, stmt statement) (Record, error) {
	row := map[string]any{}
	if err := conn.QueryRowxContext(ctx, stmt.sql, stmt.args...).MapScan(row); err != nil {
		return nil, s.fail(err)
	}
	return normalize(s.desc.Columns(), row), nil
}

func (s *SQLite) List(ctx context.Context, sess Session, filter Filter, page Page) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		conn, err := s.conn(sess)
		if err != nil {
			yield(nil, err)
			return
		}

		stmt := s.sql.list(filter, page)
		rows, err := conn.QueryxContext(ctx, stmt.sql, stmt.args...)
		if err != nil {
			yield(nil, s.fail(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row := map[string]any{}
			if err := rows.MapScan(row); err != nil {
				yield(nil, s.fail(err))
				return
			}
			if !yield(normalize(s.desc.Columns(), row), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, s.fail(err))
		}
	}
}

func (s *SQLite) Count(ctx context.Context, sess Session, filter Filter) (int64, error) {
	conn, err := s.conn(sess)
	if err != nil {
		return 0, err
	}

	stmt := s.sql.count(filter)
	var n int64
	if err := conn.QueryRowxContext(ctx, stmt.sql, stmt.args...).Scan(&n); err != nil {
		return 0, s.fail(err)
	}
	return n, nil
}

func (s *SQLite) Update(ctx context.Context, sess Session, id int64, patch Record) (Record, error) {
	conn, err := s.conn(sess)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(s.desc, sortedKeys(patch)); err != nil {
		return nil, err
	}

	stmt := s.sql.update(id, patch)
	if stmt.sql == "" {
		return s.one(ctx, conn, s.sql.get(id))
	}
	return s.one(ctx, conn, stmt)
}

func (s *SQLite) Delete(ctx context.Context, sess Session, id int64) (bool, error) {
	conn, err := s.conn(sess)
	if err != nil {
		return false, err
	}

	stmt := s.sql.delete(id)
	res, err := conn.ExecContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return false, s.fail(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail(err)
	}
	return n > 0, nil
}
