// Package store provides the generic keyed-record table backing every entity
// kind. It owns id assignment and raw storage; business rules live in the
// entity services.
package store

import (
	"context"
	"sort"
	"sync"

	"gatekeep/pkg/platform/sentinel"
)

// Keyed is implemented by records kept in a Table. WithKey returns a copy of
// the record with the id set; the table calls it exactly once, at Put.
type Keyed[T any] interface {
	Key() int64
	WithKey(id int64) T
}

// Table is an in-memory id-indexed table for one entity kind. Ids are
// strictly increasing, assigned at Put, and never reused within the process
// lifetime. Records are stored by value, so reads hand out copies and a
// failed transition leaves the stored record untouched.
//
// All mutating operations on the same table serialize on one RWMutex; reads
// may proceed concurrently with each other.
type Table[T Keyed[T]] struct {
	mu      sync.RWMutex
	records map[int64]T
	lastID  int64
}

// NewTable creates an empty table.
func NewTable[T Keyed[T]]() *Table[T] {
	return &Table[T]{records: make(map[int64]T)}
}

// Put assigns the next id and stores the record, returning the stored copy.
func (t *Table[T]) Put(_ context.Context, record T) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastID++
	record = record.WithKey(t.lastID)
	t.records[record.Key()] = record
	return record, nil
}

// Get returns a copy of the record, or sentinel.ErrNotFound.
func (t *Table[T]) Get(_ context.Context, id int64) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.records[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	return record, nil
}

// List returns records matching keep (all records when keep is nil),
// ordered by ascending id so listings are deterministic.
func (t *Table[T]) List(_ context.Context, keep func(T) bool) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.records))
	for _, record := range t.records {
		if keep == nil || keep(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Update applies mutate to the stored record under the write lock and
// returns the updated copy. Unknown ids return sentinel.ErrNotFound without
// invoking mutate.
func (t *Table[T]) Update(_ context.Context, id int64, mutate func(*T)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	mutate(&record)
	t.records[id] = record
	return record, nil
}

// Execute runs validate and, if it passes, mutate against the record while
// holding the write lock, so status checks and flips are atomic with respect
// to every other mutation of the same table. A validate failure leaves the
// stored record untouched and is returned verbatim.
func (t *Table[T]) Execute(_ context.Context, id int64, validate func(T) error, mutate func(*T)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(record); err != nil {
			var zero T
			return zero, err
		}
	}
	if mutate != nil {
		mutate(&record)
		t.records[id] = record
	}
	return record, nil
}

// Delete removes the record, reporting whether it existed. Lifecycle records
// are never deleted; this exists for inventory administration.
func (t *Table[T]) Delete(_ context.Context, id int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[id]; !ok {
		return false, nil
	}
	delete(t.records, id)
	return true, nil
}

// Len returns the number of stored records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
