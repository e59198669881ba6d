package repository

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgets(t *testing.T) *resource.Descriptor {
	t.Helper()
	shape := schema.MustNew(
		schema.Field{Name: "name", Type: schema.TypeString, Required: true},
		schema.Field{Name: "sku", Type: schema.TypeString, Unique: true},
		schema.Field{Name: "qty", Type: schema.TypeInteger},
		schema.Field{Name: "price", Type: schema.TypeNumber},
		schema.Field{Name: "active", Type: schema.TypeBoolean},
		schema.Field{Name: "made_at", Type: schema.TypeTimestamp},
	)
	desc, err := resource.New(resource.Spec{Name: "widgets", Prefix: "/widgets", Create: shape, Read: shape})
	require.NoError(t, err)
	return desc
}

func newSQLiteAdapter(t *testing.T, desc *resource.Descriptor) Adapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlx.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ddl, err := CreateTableSQL(resource.StoreSQLite, desc)
	require.NoError(t, err)
	_, err = db.Exec(ddl)
	require.NoError(t, err)

	return NewSQLite(db, desc)
}

func newMemoryAdapter(t *testing.T, desc *resource.Descriptor) Adapter {
	return NewMemory(desc)
}

var backends = map[string]func(*testing.T, *resource.Descriptor) Adapter{
	resource.StoreMemory: newMemoryAdapter,
	resource.StoreSQLite: newSQLiteAdapter,
}

// session acquires a session released at the end of the test.
func session(t *testing.T, a Adapter) Session {
	t.Helper()
	sess, err := a.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(sess.Release)
	return sess
}

func TestAdapters(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("create then get", func(t *testing.T) { testCreateGet(t, open(t, widgets(t))) })
			t.Run("get missing", func(t *testing.T) { testGetMissing(t, open(t, widgets(t))) })
			t.Run("list pages", func(t *testing.T) { testListPages(t, open(t, widgets(t))) })
			t.Run("list is lazy and restartable", func(t *testing.T) { testListRestartable(t, open(t, widgets(t))) })
			t.Run("filter and count", func(t *testing.T) { testFilterCount(t, open(t, widgets(t))) })
			t.Run("partial update", func(t *testing.T) { testUpdate(t, open(t, widgets(t))) })
			t.Run("delete", func(t *testing.T) { testDelete(t, open(t, widgets(t))) })
			t.Run("unique conflict", func(t *testing.T) { testUnique(t, open(t, widgets(t))) })
			t.Run("foreign session", func(t *testing.T) { testForeignSession(t, open(t, widgets(t))) })
		})
	}
}

func testCreateGet(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	madeAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := a.Create(ctx, sess, Record{
		"name":    "bolt",
		"sku":     "B-1",
		"qty":     int64(12),
		"price":   9.5,
		"active":  true,
		"made_at": madeAt,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := a.Get(ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID())
	assert.Equal(t, "bolt", got["name"])
	assert.Equal(t, int64(12), got["qty"])
	assert.Equal(t, 9.5, got["price"])
	assert.Equal(t, true, got["active"])
	assert.True(t, madeAt.Equal(got["made_at"].(time.Time)))

	// Absent optional values stay absent.
	id2, err := a.Create(ctx, sess, Record{"name": "nut"})
	require.NoError(t, err)
	got, err = a.Get(ctx, sess, id2)
	require.NoError(t, err)
	assert.Equal(t, Record{"id": id2, "name": "nut"}, got)
}

func testGetMissing(t *testing.T, a Adapter) {
	_, err := a.Get(context.Background(), session(t, a), 42)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func seed(t *testing.T, a Adapter, sess Session, n int) {
	t.Helper()
	for i := range n {
		_, err := a.Create(context.Background(), sess, Record{"name": "w", "qty": int64(i % 2)})
		require.NoError(t, err)
	}
}

func ids(t *testing.T, a Adapter, sess Session, filter Filter, page Page) []int64 {
	t.Helper()
	recs, err := Collect(a.List(context.Background(), sess, filter, page))
	require.NoError(t, err)
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

func testListPages(t *testing.T, a Adapter) {
	sess := session(t, a)
	seed(t, a, sess, 5)

	first := ids(t, a, sess, nil, Page{Number: 1, Size: 2})
	second := ids(t, a, sess, nil, Page{Number: 2, Size: 2})
	both := ids(t, a, sess, nil, Page{Number: 1, Size: 4})

	assert.Equal(t, []int64{1, 2}, first)
	assert.Equal(t, both, append(first, second...))
	assert.Equal(t, []int64{5}, ids(t, a, sess, nil, Page{Number: 3, Size: 2}))
	assert.Empty(t, ids(t, a, sess, nil, Page{Number: 9, Size: 2}))
	assert.Empty(t, ids(t, a, sess, nil, Page{Number: math.MaxInt, Size: 2}))
	assert.Empty(t, ids(t, a, sess, nil, Page{Number: math.MaxInt/2 + 2, Size: 2}))
}

func testListRestartable(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	seq := a.List(ctx, sess, nil, Page{Number: 1, Size: 10})

	// Nothing exists when the sequence is built, yet ranging finds later rows.
	seed(t, a, sess, 2)
	got, err := Collect(seq)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	seed(t, a, sess, 1)
	got, err = Collect(seq)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Stopping early is allowed.
	for rec, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.ID())
		break
	}
}

func testFilterCount(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	seed(t, a, sess, 5)

	n, err := a.Count(ctx, sess, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = a.Count(ctx, sess, Filter{"qty": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, []int64{1, 3, 5}, ids(t, a, sess, Filter{"qty": int64(0)}, Page{Number: 1, Size: 10}))
	assert.Empty(t, ids(t, a, sess, Filter{"name": "missing"}, Page{Number: 1, Size: 10}))
}

func testUpdate(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	id, err := a.Create(ctx, sess, Record{"name": "bolt", "qty": int64(1), "sku": "B-1"})
	require.NoError(t, err)

	got, err := a.Update(ctx, sess, id, Record{"qty": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": id, "name": "bolt", "qty": int64(7), "sku": "B-1"}, got)

	got, err = a.Update(ctx, sess, id, Record{"sku": nil})
	require.NoError(t, err)
	assert.NotContains(t, got, "sku")

	got, err = a.Update(ctx, sess, id, Record{})
	require.NoError(t, err)
	assert.Equal(t, "bolt", got["name"])

	_, err = a.Update(ctx, sess, 99, Record{"qty": int64(1)})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = a.Update(ctx, sess, id, Record{"colour": "red"})
	assert.Error(t, err)
}

func testDelete(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	id, err := a.Create(ctx, sess, Record{"name": "bolt"})
	require.NoError(t, err)

	existed, err := a.Delete(ctx, sess, id)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = a.Delete(ctx, sess, id)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = a.Get(ctx, sess, id)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func testUnique(t *testing.T, a Adapter) {
	ctx := context.Background()
	sess := session(t, a)
	_, err := a.Create(ctx, sess, Record{"name": "a", "sku": "X"})
	require.NoError(t, err)
	other, err := a.Create(ctx, sess, Record{"name": "b", "sku": "Y"})
	require.NoError(t, err)

	_, err = a.Create(ctx, sess, Record{"name": "c", "sku": "X"})
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = a.Update(ctx, sess, other, Record{"sku": "X"})
	assert.ErrorIs(t, err, errs.ErrConflict)

	// Rewriting a row's own value is not a conflict.
	_, err = a.Update(ctx, sess, other, Record{"sku": "Y"})
	assert.NoError(t, err)
}

type strangerSession struct{}

func (strangerSession) Release() {}

func testForeignSession(t *testing.T, a Adapter) {
	_, err := a.Get(context.Background(), strangerSession{}, 1)
	assert.ErrorIs(t, err, errForeignSession)
}
