package store

import (
	"context"
	"strings"

	"gatekeep/internal/identity/models"
	"gatekeep/internal/store"
	"gatekeep/pkg/platform/sentinel"
)

// InMemory holds users in a generic table with a username lookup on top.
type InMemory struct {
	*store.Table[models.User]
}

func NewInMemory() *InMemory {
	return &InMemory{Table: store.NewTable[models.User]()}
}

// FindByID returns the user with the given id.
func (s *InMemory) FindByID(ctx context.Context, id int64) (models.User, error) {
	return s.Get(ctx, id)
}

// FindByUsername does a case-insensitive username lookup.
func (s *InMemory) FindByUsername(ctx context.Context, username string) (models.User, error) {
	users, err := s.List(ctx, func(u models.User) bool {
		return strings.EqualFold(u.Username, username)
	})
	if err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, sentinel.ErrNotFound
	}
	return users[0], nil
}
