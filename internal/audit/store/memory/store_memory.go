package memory

import (
	"context"
	"sort"

	"gatekeep/internal/audit"
	"gatekeep/internal/store"
)

// InMemoryStore keeps the audit trail in the generic record table. Entries
// get monotonic ids on append and are never mutated afterwards.
type InMemoryStore struct {
	table *store.Table[audit.Entry]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{table: store.NewTable[audit.Entry]()}
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return s.table.Put(ctx, entry)
}

// ListRecent returns up to limit entries, newest first. A non-positive
// limit returns everything.
func (s *InMemoryStore) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	entries, err := s.table.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID int64) ([]audit.Entry, error) {
	entries, err := s.table.List(ctx, func(e audit.Entry) bool { return e.UserID == userID })
	if err != nil {
		return nil, err
	}
	sortNewestFirst(entries)
	return entries, nil
}

func sortNewestFirst(entries []audit.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			// Ids break timestamp ties so the order is stable.
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
