package repository

import (
	"context"
	"iter"

	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores a resource in a Postgres table through a pgx pool. A
// session holds one pooled connection for the length of a request.
type Postgres struct {
	pool *pgxpool.Pool
	desc *resource.Descriptor
	sql  builder
}

type pgSession struct {
	conn  *pgxpool.Conn
	guard *sessionGuard
}

func (s *pgSession) Release() {
	s.guard.release(s.conn.Release)
}

// NewPostgres returns an adapter for desc on pool. The table must exist;
// see Migrations.
func NewPostgres(pool *pgxpool.Pool, desc *resource.Descriptor) *Postgres {
	return &Postgres{
		pool: pool,
		desc: desc,
		sql:  newBuilder(postgresDialect, desc),
	}
}

func (p *Postgres) Store() string { return resource.StorePostgres }

func (p *Postgres) Ping(ctx context.Context) error {
	return sqlerr.Unavailable(p.pool.Ping(ctx))
}

func (p *Postgres) Acquire(ctx context.Context) (Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, observe(p.Store(), p.desc.Name, sqlerr.Unavailable(err))
	}
	return &pgSession{conn: conn, guard: openGuard(p.Store(), p.desc.Name)}, nil
}

func (p *Postgres) conn(sess Session) (*pgxpool.Conn, error) {
	s, ok := sess.(*pgSession)
	if !ok || s.conn == nil {
		return nil, errForeignSession
	}
	return s.conn, nil
}

func (p *Postgres) fail(err error) error {
	return observe(p.Store(), p.desc.Name, sqlerr.Translate(err))
}

func (p *Postgres) Create(ctx context.Context, sess Session, rec Record) (int64, error) {
	conn, err := p.conn(sess)
	if err != nil {
		return 0, err
	}
	if err := checkColumns(p.desc, sortedKeys(rec)); err != nil {
		return 0, err
	}

	stmt := p.sql.insert(compact(rec))
	var id int64
	if err := conn.QueryRow(ctx, stmt.sql, stmt.args...).Scan(&id); err != nil {
		return 0, p.fail(err)
	}
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, sess Session, id int64) (Record, error) {
	conn, err := p.conn(sess)
	if err != nil {
		return nil, err
	}
	return p.one(ctx, conn, p.sql.get(id))
}

func (p *Postgres) one(ctx context.Context, conn *pgxpool.Conn, stmt statement) (Record, error) {
	rows, err := conn.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, p.fail(err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, p.fail(err)
	}
	return normalize(p.desc.Columns(), row), nil
}

func (p *Postgres) List(ctx context.Context, sess Session, filter Filter, page Page) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		conn, err := p.conn(sess)
		if err != nil {
			yield(nil, err)
			return
		}

		stmt := p.sql.list(filter, page)
		rows, err := conn.Query(ctx, stmt.sql, stmt.args...)
		if err != nil {
			yield(nil, p.fail(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row, err := pgx.RowToMap(rows)
			if err != nil {
				yield(nil, p.fail(err))
				return
			}
			if !yield(normalize(p.desc.Columns(), row), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, p.fail(err))
		}
	}
}

func (p *Postgres) Count(ctx context.Context, sess Session, filter Filter) (int64, error) {
	conn, err := p.conn(sess)
	if err != nil {
		return 0, err
	}

	stmt := p.sql.count(filter)
	var n int64
	if err := conn.QueryRow(ctx, stmt.sql, stmt.args...).Scan(&n); err != nil {
		return 0, p.fail(err)
	}
	return n, nil
}

func (p *Postgres) Update(ctx context.Context, sess Session, id int64, patch Record) (Record, error) {
	conn, err := p.conn(sess)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(p.desc, sortedKeys(patch)); err != nil {
		return nil, err
	}

	stmt := p.sql.update(id, patch)
	if stmt.sql == "" {
		return p.one(ctx, conn, p.sql.get(id))
	}
	return p.one(ctx, conn, stmt)
}

func (p *Postgres) Delete(ctx context.Context, sess Session, id int64) (bool, error) {
	conn, err := p.conn(sess)
	if err != nil {
		return false, err
	}

	stmt := p.sql.delete(id)
	tag, err := conn.Exec(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return false, p.fail(err)
	}
	return tag.RowsAffected() > 0, nil
}
