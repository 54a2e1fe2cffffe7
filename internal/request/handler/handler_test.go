package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeep/internal/audit"
	auditmemory "gatekeep/internal/audit/store/memory"
	identitymodels "gatekeep/internal/identity/models"
	identitystore "gatekeep/internal/identity/store"
	"gatekeep/internal/notify"
	"gatekeep/internal/request/models"
	requestservice "gatekeep/internal/request/service"
	requeststore "gatekeep/internal/request/store"
	sessionservice "gatekeep/internal/session/service"
	sessionstore "gatekeep/internal/session/store"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/testutil"
)

type fixture struct {
	router   *chi.Mux
	now      time.Time
	dev      identitymodels.User
	approver identitymodels.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	users := identitystore.NewInMemory()
	dev, err := users.Put(ctx, identitymodels.User{Role: identitymodels.RoleDeveloper, Active: true})
	require.NoError(t, err)
	approver, err := users.Put(ctx, identitymodels.User{Role: identitymodels.RoleAdmin, Active: true})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := notify.NewBus()
	trail := audit.New(auditmemory.NewInMemoryStore(), users, audit.WithLogger(logger))
	sessions := sessionservice.New(sessionstore.NewInMemory(), users, trail, bus,
		sessionservice.WithLogger(logger))
	requests := requestservice.New(requeststore.NewInMemory(), users, sessions, trail, bus,
		requestservice.WithLogger(logger))

	router := chi.NewRouter()
	New(requests, logger).Register(router)
	return &fixture{router: router, now: now, dev: dev, approver: approver}
}

func (f *fixture) do(t *testing.T, userID int64, method, path string, body any) *models.AccessRequest {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.WithUserID(req, userID)
	req = testutil.WithTime(req, f.now)
	rr := testutil.DoRequest(f.router, req)
	require.Less(t, rr.Code, 300, "unexpected status %d: %s", rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.AccessRequest](t, rr)
}

func TestSubmitReturnsCreatedRequest(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 60, "justification": "debugging",
	})
	req = testutil.WithUserID(req, f.dev.ID)
	req = testutil.WithTime(req, f.now)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[models.AccessRequest](t, rr)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, f.dev.ID, created.UserID)
}

func TestSubmitWithBadDurationIsValidationError(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 45, "justification": "debugging",
	})
	req = testutil.WithUserID(req, f.dev.ID)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeValidation))
}

func TestApproveWithEmptyBodyUsesRequestedDuration(t *testing.T) {
	f := newFixture(t)
	created := f.do(t, f.dev.ID, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 30, "justification": "debugging",
	})

	req := testutil.NewRequest(t, http.MethodPost, "/api/access-requests/1/approve")
	req = testutil.WithUserID(req, f.approver.ID)
	req = testutil.WithTime(req, f.now)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	approved := testutil.UnmarshalResponse[models.AccessRequest](t, rr)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ExpiresAt)
	assert.Equal(t, f.now.Add(time.Duration(created.DurationMinutes)*time.Minute), *approved.ExpiresAt)
}

func TestApproveWithDurationOverride(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.dev.ID, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 30, "justification": "debugging",
	})

	approved := f.do(t, f.approver.ID, http.MethodPost, "/api/access-requests/1/approve",
		map[string]int{"duration": 120})
	require.NotNil(t, approved.ExpiresAt)
	assert.Equal(t, f.now.Add(120*time.Minute), *approved.ExpiresAt)
}

func TestApproveByRequesterIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.dev.ID, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 30, "justification": "debugging",
	})

	req := testutil.NewRequest(t, http.MethodPost, "/api/access-requests/1/approve")
	req = testutil.WithUserID(req, f.dev.ID)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeForbidden))
}

func TestRejectingDecidedRequestIsConflict(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.dev.ID, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 30, "justification": "debugging",
	})
	f.do(t, f.approver.ID, http.MethodPost, "/api/access-requests/1/approve", nil)

	req := testutil.NewRequest(t, http.MethodPost, "/api/access-requests/1/reject")
	req = testutil.WithUserID(req, f.approver.ID)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertErrorCode(t, rr, string(dErrors.CodeInvariantViolation))
}

func TestNonNumericIDIsBadRequest(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewRequest(t, http.MethodPost, "/api/access-requests/abc/approve")
	req = testutil.WithUserID(req, f.approver.ID)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestListShowsOnlyOwnRequestsToDevelopers(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.dev.ID, http.MethodPost, "/api/access-requests", map[string]any{
		"applicationId": 1, "resourceId": 7, "accessType": "read-only",
		"duration": 30, "justification": "debugging",
	})

	req := testutil.NewRequest(t, http.MethodGet, "/api/access-requests")
	req = testutil.WithUserID(req, f.dev.ID)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	listed := testutil.UnmarshalResponse[[]models.AccessRequest](t, rr)
	assert.Len(t, *listed, 1)
}
