package inventory

import (
	"context"

	"gatekeep/internal/store"
)

// InMemoryStore keeps applications and resources in generic tables.
type InMemoryStore struct {
	applications *store.Table[Application]
	resources    *store.Table[Resource]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		applications: store.NewTable[Application](),
		resources:    store.NewTable[Resource](),
	}
}

func (s *InMemoryStore) CreateApplication(ctx context.Context, app Application) (Application, error) {
	return s.applications.Put(ctx, app)
}

func (s *InMemoryStore) GetApplication(ctx context.Context, id int64) (Application, error) {
	return s.applications.Get(ctx, id)
}

func (s *InMemoryStore) ListApplications(ctx context.Context) ([]Application, error) {
	return s.applications.List(ctx, nil)
}

func (s *InMemoryStore) UpdateApplication(ctx context.Context, id int64, mutate func(*Application)) (Application, error) {
	return s.applications.Update(ctx, id, mutate)
}

func (s *InMemoryStore) DeleteApplication(ctx context.Context, id int64) (bool, error) {
	return s.applications.Delete(ctx, id)
}

func (s *InMemoryStore) CreateResource(ctx context.Context, resource Resource) (Resource, error) {
	return s.resources.Put(ctx, resource)
}

func (s *InMemoryStore) GetResource(ctx context.Context, id int64) (Resource, error) {
	return s.resources.Get(ctx, id)
}

func (s *InMemoryStore) ListResources(ctx context.Context) ([]Resource, error) {
	return s.resources.List(ctx, nil)
}

func (s *InMemoryStore) ListResourcesByApplication(ctx context.Context, applicationID int64) ([]Resource, error) {
	return s.resources.List(ctx, func(r Resource) bool {
		return r.ApplicationID == applicationID
	})
}

func (s *InMemoryStore) CountApplications(ctx context.Context) (int, error) {
	return s.applications.Len(), nil
}
