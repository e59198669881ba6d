package repository

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
)

// Memory keeps the entities of one resource in a map. It enforces Unique
// columns and counts open sessions, which makes it the backend of choice for
// tests and for throwaway resources.
type Memory struct {
	desc *resource.Descriptor

	mu     sync.RWMutex
	rows   map[int64]Record
	nextID int64
	closed bool

	sessions atomic.Int64
}

type memorySession struct {
	store *Memory
	guard *sessionGuard
}

func (s *memorySession) Release() {
	s.guard.release(func() { s.store.sessions.Add(-1) })
}

// NewMemory returns an empty store for desc.
func NewMemory(desc *resource.Descriptor) *Memory {
	return &Memory{
		desc: desc,
		rows: make(map[int64]Record),
	}
}

func (m *Memory) Store() string { return resource.StoreMemory }

// OpenSessions reports the sessions acquired and not yet released.
func (m *Memory) OpenSessions() int64 {
	return m.sessions.Load()
}

// Close makes the store unreachable: every later call fails with
// errs.ErrStoreUnavailable.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("memory store %s: %w", m.desc.Name, errs.ErrStoreUnavailable)
	}
	return nil
}

func (m *Memory) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Ping(ctx); err != nil {
		return nil, observe(m.Store(), m.desc.Name, err)
	}
	m.sessions.Add(1)
	return &memorySession{store: m, guard: openGuard(m.Store(), m.desc.Name)}, nil
}

// check validates the session and must be called with m.mu held.
func (m *Memory) check(sess Session) error {
	s, ok := sess.(*memorySession)
	if !ok || s.store != m {
		return errForeignSession
	}
	if m.closed {
		return fmt.Errorf("memory store %s: %w", m.desc.Name, errs.ErrStoreUnavailable)
	}
	return nil
}

func (m *Memory) Create(ctx context.Context, sess Session, rec Record) (int64, error) {
	if err := checkColumns(m.desc, sortedKeys(rec)); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(sess); err != nil {
		return 0, observe(m.Store(), m.desc.Name, err)
	}

	row := compact(rec)
	if err := m.checkUnique(row, 0); err != nil {
		return 0, observe(m.Store(), m.desc.Name, err)
	}

	m.nextID++
	row[schema.IDField] = m.nextID
	m.rows[m.nextID] = row
	return m.nextID, nil
}

func (m *Memory) Get(ctx context.Context, sess Session, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(sess); err != nil {
		return nil, observe(m.Store(), m.desc.Name, err)
	}

	row, ok := m.rows[id]
	if !ok {
		return nil, observe(m.Store(), m.desc.Name, fmt.Errorf("%s %d: %w", m.desc.Name, id, errs.ErrNotFound))
	}
	return maps.Clone(row), nil
}

func (m *Memory) List(ctx context.Context, sess Session, filter Filter, page Page) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		// Snapshot under the lock and yield outside it, so the consumer may
		// call back into the store.
		m.mu.RLock()
		if err := m.check(sess); err != nil {
			m.mu.RUnlock()
			yield(nil, observe(m.Store(), m.desc.Name, err))
			return
		}
		matched := m.matching(filter)
		window := paginate(matched, page)
		out := make([]Record, len(window))
		for i, id := range window {
			out[i] = maps.Clone(m.rows[id])
		}
		m.mu.RUnlock()

		for _, rec := range out {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (m *Memory) Count(ctx context.Context, sess Session, filter Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(sess); err != nil {
		return 0, observe(m.Store(), m.desc.Name, err)
	}
	return int64(len(m.matching(filter))), nil
}

func (m *Memory) Update(ctx context.Context, sess Session, id int64, patch Record) (Record, error) {
	if err := checkColumns(m.desc, sortedKeys(patch)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(sess); err != nil {
		return nil, observe(m.Store(), m.desc.Name, err)
	}

	current, ok := m.rows[id]
	if !ok {
		return nil, observe(m.Store(), m.desc.Name, fmt.Errorf("%s %d: %w", m.desc.Name, id, errs.ErrNotFound))
	}

	next := maps.Clone(current)
	for k, v := range patch {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	if err := m.checkUnique(next, id); err != nil {
		return nil, observe(m.Store(), m.desc.Name, err)
	}

	m.rows[id] = next
	return maps.Clone(next), nil
}

func (m *Memory) Delete(ctx context.Context, sess Session, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(sess); err != nil {
		return false, observe(m.Store(), m.desc.Name, err)
	}

	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

// matching returns the ids of rows equal to filter, ascending.
func (m *Memory) matching(filter Filter) []int64 {
	ids := make([]int64, 0, len(m.rows))
	for id, row := range m.rows {
		if matches(row, filter) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// checkUnique reports a conflict when another row (not self) already holds
// the value of a Unique column.
func (m *Memory) checkUnique(row Record, self int64) error {
	for _, f := range m.desc.Columns().Fields() {
		if !f.Unique {
			continue
		}
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		for id, other := range m.rows {
			if id == self {
				continue
			}
			if equal(other[f.Name], v) {
				return fmt.Errorf("%s.%s: %w", m.desc.Name, f.Name, errs.ErrConflict)
			}
		}
	}
	return nil
}

func matches(row Record, filter Filter) bool {
	for k, want := range filter {
		got, ok := row[k]
		if want == nil {
			if ok {
				return false
			}
			continue
		}
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func paginate(ids []int64, page Page) []int64 {
	start := page.Offset()
	if start < 0 || start >= len(ids) {
		return nil
	}
	end := len(ids)
	if page.Size > 0 && page.Size < end-start {
		end = start + page.Size
	}
	return ids[start:end]
}

// compact copies rec without nil values.
func compact(rec Record) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
