package inventory

import (
	"context"
	"errors"
	"log/slog"

	"gatekeep/internal/access"
	identitymodels "gatekeep/internal/identity/models"
	"gatekeep/internal/notify"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/sentinel"
	"gatekeep/pkg/requestcontext"
)

// Store is the persistence contract for the inventory.
type Store interface {
	CreateApplication(ctx context.Context, app Application) (Application, error)
	GetApplication(ctx context.Context, id int64) (Application, error)
	ListApplications(ctx context.Context) ([]Application, error)
	UpdateApplication(ctx context.Context, id int64, mutate func(*Application)) (Application, error)
	DeleteApplication(ctx context.Context, id int64) (bool, error)
	CreateResource(ctx context.Context, resource Resource) (Resource, error)
	GetResource(ctx context.Context, id int64) (Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)
	ListResourcesByApplication(ctx context.Context, applicationID int64) ([]Resource, error)
	CountApplications(ctx context.Context) (int, error)
}

// UserFinder resolves actors for role checks.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (identitymodels.User, error)
}

// Publisher fans mutation events out to observers.
type Publisher interface {
	Publish(event notify.Event)
}

// Service manages the application and resource catalog. Reads are open to
// any authenticated user; writes are gated by role.
type Service struct {
	store  Store
	users  UserFinder
	bus    Publisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, users UserFinder, bus Publisher, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  users,
		bus:    bus,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplicationParams carries the mutable fields of an application.
type ApplicationParams struct {
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	Environment string   `json:"environment"`
	Criticality string   `json:"criticality"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

func (p ApplicationParams) validate() error {
	if p.Name == "" || p.Owner == "" || p.Environment == "" || p.Criticality == "" {
		return dErrors.New(dErrors.CodeValidation, "name, owner, environment, and criticality are required")
	}
	return nil
}

// CreateApplication registers a new application. Admin/TPO only.
func (s *Service) CreateApplication(ctx context.Context, actorID int64, params ApplicationParams) (Application, error) {
	if err := s.authorizeManager(ctx, actorID); err != nil {
		return Application{}, err
	}
	if err := params.validate(); err != nil {
		return Application{}, err
	}

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	app, err := s.store.CreateApplication(ctx, Application{
		Name:        params.Name,
		Owner:       params.Owner,
		Environment: params.Environment,
		Criticality: params.Criticality,
		Tags:        tags,
		Description: params.Description,
		CreatedAt:   requestcontext.Now(ctx),
	})
	if err != nil {
		return Application{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store application")
	}

	s.bus.Publish(notify.Event{Type: notify.EventApplicationCreated, Data: app})
	s.logger.InfoContext(ctx, "application created", "application_id", app.ID, "name", app.Name)
	return app, nil
}

// UpdateApplication overwrites an application's mutable fields. Admin/TPO only.
func (s *Service) UpdateApplication(ctx context.Context, actorID, id int64, params ApplicationParams) (Application, error) {
	if err := s.authorizeManager(ctx, actorID); err != nil {
		return Application{}, err
	}
	if err := params.validate(); err != nil {
		return Application{}, err
	}

	app, err := s.store.UpdateApplication(ctx, id, func(a *Application) {
		a.Name = params.Name
		a.Owner = params.Owner
		a.Environment = params.Environment
		a.Criticality = params.Criticality
		if params.Tags != nil {
			a.Tags = params.Tags
		}
		a.Description = params.Description
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Application{}, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return Application{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update application")
	}

	s.bus.Publish(notify.Event{Type: notify.EventApplicationUpdated, Data: app})
	return app, nil
}

// DeleteApplication removes an application. Admin only.
func (s *Service) DeleteApplication(ctx context.Context, actorID, id int64) error {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "unknown actor")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor")
	}
	if !access.CanManageUsers(actor) {
		return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	deleted, err := s.store.DeleteApplication(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete application")
	}
	if !deleted {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}

	s.bus.Publish(notify.Event{Type: notify.EventApplicationDeleted, Data: map[string]int64{"id": id}})
	s.logger.InfoContext(ctx, "application deleted", "application_id", id)
	return nil
}

// ListApplications returns the full catalog.
func (s *Service) ListApplications(ctx context.Context) ([]Application, error) {
	return s.store.ListApplications(ctx)
}

// ListResources returns every resource.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.store.ListResources(ctx)
}

// ListResourcesByApplication returns the resources owned by one application.
func (s *Service) ListResourcesByApplication(ctx context.Context, applicationID int64) ([]Resource, error) {
	return s.store.ListResourcesByApplication(ctx, applicationID)
}

// ResourceParams carries the fields of a new resource.
type ResourceParams struct {
	ApplicationID int64    `json:"applicationId"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Environment   string   `json:"environment"`
	Host          string   `json:"host"`
	Tags          []string `json:"tags"`
}

// CreateResource adds a resource to an application and bumps the owner's
// resource count. Admin/TPO only.
func (s *Service) CreateResource(ctx context.Context, actorID int64, params ResourceParams) (Resource, error) {
	if err := s.authorizeManager(ctx, actorID); err != nil {
		return Resource{}, err
	}
	if params.Name == "" || params.Type == "" || params.Host == "" {
		return Resource{}, dErrors.New(dErrors.CodeValidation, "name, type, and host are required")
	}
	if _, err := s.store.GetApplication(ctx, params.ApplicationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Resource{}, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return Resource{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load application")
	}

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	resource, err := s.store.CreateResource(ctx, Resource{
		ApplicationID: params.ApplicationID,
		Name:          params.Name,
		Type:          params.Type,
		Environment:   params.Environment,
		Host:          params.Host,
		Tags:          tags,
		Status:        ResourceActive,
		CreatedAt:     requestcontext.Now(ctx),
	})
	if err != nil {
		return Resource{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store resource")
	}

	if _, err := s.store.UpdateApplication(ctx, params.ApplicationID, func(a *Application) {
		a.ResourceCount++
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to bump resource count",
			"application_id", params.ApplicationID, "error", err)
	}
	return resource, nil
}

// CountApplications reports the catalog size, for dashboards.
func (s *Service) CountApplications(ctx context.Context) (int, error) {
	return s.store.CountApplications(ctx)
}

func (s *Service) authorizeManager(ctx context.Context, actorID int64) error {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "unknown actor")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor")
	}
	if !access.CanManageInventory(actor) {
		return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	return nil
}
