package inventory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	identitymodels "gatekeep/internal/identity/models"
	identitystore "gatekeep/internal/identity/store"
	"gatekeep/internal/notify"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/requestcontext"
)

type recordingBus struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingBus) Publish(event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBus) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type InventoryServiceSuite struct {
	suite.Suite
	ctx     context.Context
	users   *identitystore.InMemory
	bus     *recordingBus
	service *Service
	admin   identitymodels.User
	tpo     identitymodels.User
	dev     identitymodels.User
}

func TestInventoryServiceSuite(t *testing.T) {
	suite.Run(t, new(InventoryServiceSuite))
}

func (s *InventoryServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	s.users = identitystore.NewInMemory()
	s.bus = &recordingBus{}

	var err error
	s.admin, err = s.users.Put(s.ctx, identitymodels.User{Role: identitymodels.RoleAdmin, Active: true})
	s.Require().NoError(err)
	s.tpo, err = s.users.Put(s.ctx, identitymodels.User{Role: identitymodels.RoleTPO, Active: true})
	s.Require().NoError(err)
	s.dev, err = s.users.Put(s.ctx, identitymodels.User{Role: identitymodels.RoleDeveloper, Active: true})
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(NewInMemoryStore(), s.users, s.bus, WithLogger(logger))
}

func (s *InventoryServiceSuite) createApp(actorID int64) Application {
	app, err := s.service.CreateApplication(s.ctx, actorID, ApplicationParams{
		Name: "payments", Owner: "platform", Environment: "PROD", Criticality: "High",
		Tags: []string{"pci"},
	})
	s.Require().NoError(err)
	return app
}

func (s *InventoryServiceSuite) TestCreateApplicationAllowsAdminAndTPO() {
	s.createApp(s.admin.ID)
	s.createApp(s.tpo.ID)

	apps, err := s.service.ListApplications(s.ctx)
	s.Require().NoError(err)
	s.Len(apps, 2)
	s.Contains(s.bus.types(), notify.EventApplicationCreated)
}

func (s *InventoryServiceSuite) TestCreateApplicationForbiddenForDeveloper() {
	_, err := s.service.CreateApplication(s.ctx, s.dev.ID, ApplicationParams{
		Name: "x", Owner: "y", Environment: "DEV", Criticality: "Low",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *InventoryServiceSuite) TestCreateApplicationValidatesFields() {
	_, err := s.service.CreateApplication(s.ctx, s.admin.ID, ApplicationParams{Name: "only name"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *InventoryServiceSuite) TestUpdateApplicationOverwritesFields() {
	app := s.createApp(s.admin.ID)

	updated, err := s.service.UpdateApplication(s.ctx, s.tpo.ID, app.ID, ApplicationParams{
		Name: "payments-v2", Owner: "platform", Environment: "PROD", Criticality: "Medium",
	})
	s.Require().NoError(err)
	s.Equal("payments-v2", updated.Name)
	s.Equal("Medium", updated.Criticality)
	s.Contains(s.bus.types(), notify.EventApplicationUpdated)
}

func (s *InventoryServiceSuite) TestUpdateUnknownApplicationIsNotFound() {
	_, err := s.service.UpdateApplication(s.ctx, s.admin.ID, 999, ApplicationParams{
		Name: "x", Owner: "y", Environment: "DEV", Criticality: "Low",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *InventoryServiceSuite) TestDeleteApplicationIsAdminOnly() {
	app := s.createApp(s.admin.ID)

	err := s.service.DeleteApplication(s.ctx, s.tpo.ID, app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.Require().NoError(s.service.DeleteApplication(s.ctx, s.admin.ID, app.ID))
	s.Contains(s.bus.types(), notify.EventApplicationDeleted)

	err = s.service.DeleteApplication(s.ctx, s.admin.ID, app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *InventoryServiceSuite) TestCreateResourceBumpsResourceCount() {
	app := s.createApp(s.admin.ID)

	resource, err := s.service.CreateResource(s.ctx, s.tpo.ID, ResourceParams{
		ApplicationID: app.ID, Name: "db-1", Type: "database", Environment: "PROD",
		Host: "db-1.internal", Tags: []string{"postgres"},
	})
	s.Require().NoError(err)
	s.Equal(ResourceActive, resource.Status)

	apps, err := s.service.ListApplications(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal(1, apps[0].ResourceCount)

	byApp, err := s.service.ListResourcesByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Len(byApp, 1)
}

func (s *InventoryServiceSuite) TestCreateResourceForUnknownApplicationFails() {
	_, err := s.service.CreateResource(s.ctx, s.admin.ID, ResourceParams{
		ApplicationID: 404, Name: "x", Type: "server", Host: "h",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *InventoryServiceSuite) TestCountApplications() {
	s.createApp(s.admin.ID)
	s.createApp(s.admin.ID)

	count, err := s.service.CountApplications(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}
