package store

import (
	"context"
	"time"

	"gatekeep/internal/session/models"
	"gatekeep/internal/store"
)

// InMemory keeps sessions in the generic record table and adds the domain
// listings the service and sweeper need.
type InMemory struct {
	*store.Table[models.Session]
}

func NewInMemory() *InMemory {
	return &InMemory{Table: store.NewTable[models.Session]()}
}

// ListByUser returns every session belonging to one user.
func (s *InMemory) ListByUser(ctx context.Context, userID int64) ([]models.Session, error) {
	return s.List(ctx, func(sess models.Session) bool { return sess.UserID == userID })
}

// ListDue returns the ids of active sessions whose grant has lapsed at now.
// The sweep flips each candidate individually afterwards, so a session that
// gets terminated between the listing and the flip is simply skipped.
func (s *InMemory) ListDue(ctx context.Context, now time.Time) ([]int64, error) {
	due, err := s.List(ctx, func(sess models.Session) bool { return sess.Due(now) })
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(due))
	for _, sess := range due {
		ids = append(ids, sess.ID)
	}
	return ids, nil
}
