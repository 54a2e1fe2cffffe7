package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatekeep/internal/audit"
	identitymodels "gatekeep/internal/identity/models"
	identitystore "gatekeep/internal/identity/store"
	"gatekeep/internal/notify"
	"gatekeep/internal/request/models"
	requeststore "gatekeep/internal/request/store"
	sessionservice "gatekeep/internal/session/service"
	sessionstore "gatekeep/internal/session/store"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/requestcontext"
)

type recordingTrail struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingTrail) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingTrail) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]audit.Action, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func (r *recordingTrail) find(action audit.Action) (audit.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Action == action {
			return e, true
		}
	}
	return audit.Entry{}, false
}

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

type RequestServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	users     *identitystore.InMemory
	sessions  *sessionstore.InMemory
	trail     *recordingTrail
	bus       *recordingBus
	service   *Service
	developer identitymodels.User
	approver  identitymodels.User
}

func TestRequestServiceSuite(t *testing.T) {
	suite.Run(t, new(RequestServiceSuite))
}

func (s *RequestServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.users = identitystore.NewInMemory()
	s.sessions = sessionstore.NewInMemory()
	s.trail = &recordingTrail{}
	s.bus = &recordingBus{}

	var err error
	s.developer, err = s.users.Put(s.ctx, identitymodels.User{
		Username: "dev", Role: identitymodels.RoleDeveloper, Active: true,
	})
	s.Require().NoError(err)
	s.approver, err = s.users.Put(s.ctx, identitymodels.User{
		Username: "tpo", Role: identitymodels.RoleTPO, Active: true,
	})
	s.Require().NoError(err)

	finder := userFinderFunc(func(ctx context.Context, id int64) (identitymodels.User, error) {
		return s.users.Get(ctx, id)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	starter := sessionservice.New(s.sessions, finder, s.trail, s.bus, sessionservice.WithLogger(logger))
	s.service = New(requeststore.NewInMemory(), finder, starter, s.trail, s.bus, WithLogger(logger))
}

type userFinderFunc func(ctx context.Context, id int64) (identitymodels.User, error)

func (f userFinderFunc) FindByID(ctx context.Context, id int64) (identitymodels.User, error) {
	return f(ctx, id)
}

func (s *RequestServiceSuite) submit() models.AccessRequest {
	request, err := s.service.Submit(s.ctx, s.developer.ID, 1, 7, models.AccessReadOnly, 60, "debugging prod issue")
	s.Require().NoError(err)
	return request
}

func (s *RequestServiceSuite) TestSubmitCreatesPendingRequest() {
	request := s.submit()

	s.Equal(models.StatusPending, request.Status)
	s.Equal(int64(0), request.ApprovedBy)
	s.Nil(request.ExpiresAt)
	s.Equal(s.now, request.CreatedAt)
	s.Contains(s.trail.actions(), audit.ActionAccessRequestCreated)
	s.Contains(s.bus.types(), notify.EventAccessRequestCreated)
}

func (s *RequestServiceSuite) TestSubmitRejectsUnknownAccessType() {
	_, err := s.service.Submit(s.ctx, s.developer.ID, 1, 7, "root", 60, "because")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RequestServiceSuite) TestSubmitRejectsDisallowedDuration() {
	_, err := s.service.Submit(s.ctx, s.developer.ID, 1, 7, models.AccessReadOnly, 45, "because")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RequestServiceSuite) TestSubmitRequiresJustification() {
	_, err := s.service.Submit(s.ctx, s.developer.ID, 1, 7, models.AccessReadOnly, 60, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RequestServiceSuite) TestApproveSpawnsSession() {
	request := s.submit()

	approved, err := s.service.Approve(s.ctx, request.ID, s.approver.ID, 0)
	s.Require().NoError(err)

	s.Equal(models.StatusApproved, approved.Status)
	s.Equal(s.approver.ID, approved.ApprovedBy)
	s.Require().NotNil(approved.ExpiresAt)
	s.Equal(s.now.Add(60*time.Minute), *approved.ExpiresAt)

	sessions, err := s.sessions.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(request.ID, sessions[0].AccessRequestID)
	s.Equal(request.UserID, sessions[0].UserID)
	s.Equal(*approved.ExpiresAt, sessions[0].ExpiresAt)

	s.Contains(s.trail.actions(), audit.ActionAccessRequestApproved)
	s.Contains(s.bus.types(), notify.EventAccessRequestApproved)
	s.Contains(s.bus.types(), notify.EventSessionCreated)
}

func (s *RequestServiceSuite) TestApproveAuditEntryLinksSpawnedSession() {
	request := s.submit()

	_, err := s.service.Approve(s.ctx, request.ID, s.approver.ID, 0)
	s.Require().NoError(err)

	sessions, err := s.sessions.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)

	entry, ok := s.trail.find(audit.ActionAccessRequestApproved)
	s.Require().True(ok)
	s.Equal(sessions[0].ID, entry.SessionID)
}

func (s *RequestServiceSuite) TestApproveHonorsDurationOverride() {
	request := s.submit()

	approved, err := s.service.Approve(s.ctx, request.ID, s.approver.ID, 15)
	s.Require().NoError(err)

	s.Require().NotNil(approved.ExpiresAt)
	s.Equal(s.now.Add(15*time.Minute), *approved.ExpiresAt)
}

func (s *RequestServiceSuite) TestApproveByDeveloperIsForbidden() {
	request := s.submit()

	_, err := s.service.Approve(s.ctx, request.ID, s.developer.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	sessions, err := s.sessions.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *RequestServiceSuite) TestApproveUnknownRequestIsNotFound() {
	_, err := s.service.Approve(s.ctx, 999, s.approver.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RequestServiceSuite) TestDecidingTwiceFailsAndLeavesRecordUnchanged() {
	request := s.submit()

	approved, err := s.service.Approve(s.ctx, request.ID, s.approver.ID, 0)
	s.Require().NoError(err)

	_, err = s.service.Reject(s.ctx, request.ID, s.approver.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	current, err := s.service.Get(s.ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(approved, current)

	// Still exactly one session from the first decision.
	sessions, err := s.sessions.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *RequestServiceSuite) TestRejectLeavesExpiryUnsetAndNoSession() {
	request := s.submit()

	rejected, err := s.service.Reject(s.ctx, request.ID, s.approver.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, rejected.Status)
	s.Equal(s.approver.ID, rejected.ApprovedBy)
	s.Nil(rejected.ExpiresAt)

	sessions, err := s.sessions.List(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(sessions)
	s.Contains(s.trail.actions(), audit.ActionAccessRequestRejected)
	s.Contains(s.bus.types(), notify.EventAccessRequestRejected)
}

func (s *RequestServiceSuite) TestConcurrentDecisionsHaveOneWinner() {
	request := s.submit()

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, results[i] = s.service.Approve(s.ctx, request.ID, s.approver.ID, 0)
			} else {
				_, results[i] = s.service.Reject(s.ctx, request.ID, s.approver.ID)
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		}
	}
	s.Equal(1, wins)
}

func (s *RequestServiceSuite) TestListVisibleToFiltersByOwnership() {
	mine := s.submit()
	other, err := s.users.Put(s.ctx, identitymodels.User{
		Username: "qa", Role: identitymodels.RoleQA, Active: true,
	})
	s.Require().NoError(err)
	_, err = s.service.Submit(s.ctx, other.ID, 1, 8, models.AccessReadWrite, 30, "load test")
	s.Require().NoError(err)

	own, err := s.service.ListVisibleTo(s.ctx, s.developer.ID)
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal(mine.ID, own[0].ID)

	all, err := s.service.ListVisibleTo(s.ctx, s.approver.ID)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *RequestServiceSuite) TestListPendingRequiresApproverRole() {
	s.submit()

	_, err := s.service.ListPending(s.ctx, s.developer.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	pending, err := s.service.ListPending(s.ctx, s.approver.ID)
	s.Require().NoError(err)
	s.Len(pending, 1)
}
