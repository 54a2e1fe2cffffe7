package store

import (
	"context"

	"gatekeep/internal/request/models"
	"gatekeep/internal/store"
)

// InMemory keeps access requests in the generic record table and adds the
// domain listings the service needs.
type InMemory struct {
	*store.Table[models.AccessRequest]
}

func NewInMemory() *InMemory {
	return &InMemory{Table: store.NewTable[models.AccessRequest]()}
}

// ListByUser returns the requests submitted by one user, oldest first.
func (s *InMemory) ListByUser(ctx context.Context, userID int64) ([]models.AccessRequest, error) {
	return s.List(ctx, func(r models.AccessRequest) bool { return r.UserID == userID })
}

// ListPending returns every request still awaiting a decision.
func (s *InMemory) ListPending(ctx context.Context) ([]models.AccessRequest, error) {
	return s.List(ctx, func(r models.AccessRequest) bool { return r.Status == models.StatusPending })
}
