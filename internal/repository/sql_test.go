package repository

import (
	"math"
	"testing"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func users(t *testing.T) *resource.Descriptor {
	t.Helper()
	create := schema.MustNew(
		schema.Field{Name: "name", Type: schema.TypeString, Required: true},
		schema.Field{Name: "email", Type: schema.TypeString, Unique: true},
	)
	desc, err := resource.New(resource.Spec{Name: "users", Prefix: "/users", Create: create, Read: create})
	require.NoError(t, err)
	return desc
}

func TestPostgresStatements(t *testing.T) {
	b := newBuilder(postgresDialect, users(t))

	ins := b.insert(Record{"name": "Alice", "email": "a@x.io"})
	assert.Equal(t, `INSERT INTO "users" ("email", "name") VALUES ($1, $2) RETURNING "id"`, ins.sql)
	assert.Equal(t, []any{"a@x.io", "Alice"}, ins.args)

	assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`, b.insert(Record{}).sql)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "users" WHERE "id" = $1`, b.get(3).sql)

	list := b.list(Filter{"name": "Alice", "email": nil}, Page{Number: 3, Size: 10})
	assert.Equal(t, `SELECT "id", "name", "email" FROM "users" WHERE "email" IS NULL AND "name" = $1 ORDER BY "id" ASC LIMIT $2 OFFSET $3`, list.sql)
	assert.Equal(t, []any{"Alice", 10, 20}, list.args)

	assert.Equal(t, `SELECT COUNT(*) FROM "users"`, b.count(nil).sql)

	upd := b.update(7, Record{"name": "Bob"})
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE "id" = $2 RETURNING "id", "name", "email"`, upd.sql)
	assert.Equal(t, []any{"Bob", int64(7)}, upd.args)
	assert.Empty(t, b.update(7, Record{}).sql)

	assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1`, b.delete(7).sql)
}

func TestSQLiteStatements(t *testing.T) {
	b := newBuilder(sqliteDialect, users(t))

	list := b.list(Filter{"name": "Alice"}, Page{Number: 1, Size: 5})
	assert.Equal(t, `SELECT "id", "name", "email" FROM "users" WHERE "name" = ? ORDER BY "id" ASC LIMIT ? OFFSET ?`, list.sql)
	assert.Equal(t, []any{"Alice", 5, 0}, list.args)

	upd := b.update(2, Record{"email": "b@x.io", "name": "Bob"})
	assert.Equal(t, `UPDATE "users" SET "email" = ?, "name" = ? WHERE "id" = ? RETURNING "id", "name", "email"`, upd.sql)
}

func TestCreateTableSQL(t *testing.T) {
	pg, err := CreateTableSQL(resource.StorePostgres, users(t))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"users\" (\n"+
		"    \"id\" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,\n"+
		"    \"name\" TEXT,\n"+
		"    \"email\" TEXT UNIQUE\n)", pg)

	lite, err := CreateTableSQL(resource.StoreSQLite, users(t))
	require.NoError(t, err)
	assert.Contains(t, lite, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)

	_, err = CreateTableSQL(resource.StoreMemory, users(t))
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	u := users(t)
	scratch := widgets(t)
	scratch.Store = resource.StoreMemory

	migs, err := Migrations(resource.StorePostgres, []*resource.Descriptor{u, scratch})
	require.NoError(t, err)
	require.Len(t, migs, 1)
	assert.Equal(t, "create_users", migs[0].Name)

	pinned := widgets(t)
	pinned.Store = resource.StoreSQLite
	_, err = Migrations(resource.StorePostgres, []*resource.Descriptor{pinned})
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRepositoriesWithoutDatabase(t *testing.T) {
	repos := NewRepositories(nil)

	a, err := repos.For(users(t))
	require.NoError(t, err)
	assert.Equal(t, resource.StoreMemory, a.Store())

	again, err := repos.For(users(t))
	require.NoError(t, err)
	assert.Same(t, a, again)

	pinned := widgets(t)
	pinned.Store = resource.StorePostgres
	_, err = repos.For(pinned)
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Size: 10}.Offset())
	assert.Equal(t, 20, Page{Number: 3, Size: 10}.Offset())
	assert.Equal(t, 0, Page{Number: 0, Size: 10}.Offset())
	assert.Equal(t, math.MaxInt, Page{Number: math.MaxInt, Size: 2}.Offset())
	assert.Equal(t, math.MaxInt, Page{Number: math.MaxInt/10 + 2, Size: 10}.Offset())

	list := newBuilder(sqliteDialect, users(t)).list(nil, Page{Number: math.MaxInt, Size: 2})
	assert.Equal(t, []any{2, math.MaxInt}, list.args)
}
