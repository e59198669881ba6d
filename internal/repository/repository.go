// Package repository persists resource entities.
//
// An Adapter stores the entities of one resource. Every data operation runs
// inside a Session the caller acquired first and must release on every exit
// path; adapters never release sessions themselves.
//
// Three backends exist: Postgres (pgx pool), SQLite (sqlx) and an in-memory
// map. Driver errors are translated into the errs sentinels, so callers only
// ever see errs.ErrNotFound, errs.ErrConflict and errs.ErrStoreUnavailable
// (with the driver error kept in the chain) or an unexpected error.
package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/metrics"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
)

// Record is one stored entity: column name to value, plus the "id" key on
// records read back from a store. Values use the schema's Go types (string,
// int64, float64, bool, time.Time). Absent optional values have no key.
type Record map[string]any

// ID returns the record's identifier, or 0 when it has none.
func (r Record) ID() int64 {
	id, _ := r[schema.IDField].(int64)
	return id
}

// Filter restricts List and Count to records whose columns equal the given
// values.
type Filter map[string]any

// Page selects a window of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of records before the page. An offset that
// does not fit in an int saturates at math.MaxInt, past any listing.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Session is a store handle scoped to a single request.
type Session interface {
	// Release returns the handle to its store. Calling it more than once is a no-op.
	Release()
}

// Adapter persists the entities of a single resource.
type Adapter interface {
	// Store names the backend ("postgres", "sqlite" or "memory").
	Store() string

	// Acquire opens a session. It fails with errs.ErrStoreUnavailable when the
	// store cannot be reached.
	Acquire(ctx context.Context) (Session, error)

	// Create inserts rec and returns the generated id.
	Create(ctx context.Context, sess Session, rec Record) (int64, error)

	// Get returns the entity with the given id or errs.ErrNotFound.
	Get(ctx context.Context, sess Session, id int64) (Record, error)

	// List yields the entities matching filter within page, ordered by id.
	// Nothing is queried until the sequence is ranged over, and ranging over
	// it again runs the query again.
	List(ctx context.Context, sess Session, filter Filter, page Page) iter.Seq2[Record, error]

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, sess Session, filter Filter) (int64, error)

	// Update applies patch to the entity and returns it as stored. Keys absent
	// from patch keep their value; a nil value clears the column.
	Update(ctx context.Context, sess Session, id int64, patch Record) (Record, error)

	// Delete removes the entity and reports whether it existed.
	Delete(ctx context.Context, sess Session, id int64) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Collect drains a List sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	out := []Record{}
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var errForeignSession = errors.New("session belongs to another store")

// sortedKeys returns the keys of m in lexical order, so generated SQL is stable.
func sortedKeys[M ~map[string]any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}

// normalize turns a raw driver row into a Record: SQL NULLs are dropped,
// values are converted to the column's Go type and unknown columns ignored.
func normalize(columns schema.Schema, row map[string]any) Record {
	out := make(Record, len(row))
	for name, v := range row {
		if v == nil {
			continue
		}
		if name == schema.IDField {
			out[name] = toInt64(v)
			continue
		}
		f, ok := columns.Field(name)
		if !ok {
			continue
		}
		out[name] = f.Normalize(v)
	}
	return out
}

func toInt64(v any) any {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case []byte:
		if id, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return id
		}
	}
	return v
}

// checkColumns rejects keys the descriptor does not declare. Handlers only
// pass validated payloads, so this guards direct callers.
func checkColumns(desc *resource.Descriptor, keys []string) error {
	for _, k := range keys {
		if _, ok := desc.Columns().Field(k); !ok {
			return fmt.Errorf("resource %s has no column %q", desc.Name, k)
		}
	}
	return nil
}

// observe counts a failed operation by outcome and returns err unchanged.
func observe(store, resourceName string, err error) error {
	if err == nil {
		return nil
	}
	kind := "other"
	switch {
	case errors.Is(err, errs.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, errs.ErrConflict):
		kind = "conflict"
	case errors.Is(err, errs.ErrStoreUnavailable):
		kind = "unavailable"
	}
	metrics.StoreError(store, resourceName, kind)
	return err
}
