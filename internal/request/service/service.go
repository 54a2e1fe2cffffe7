package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gatekeep/internal/access"
	"gatekeep/internal/audit"
	identitymodels "gatekeep/internal/identity/models"
	"gatekeep/internal/notify"
	"gatekeep/internal/request/metrics"
	"gatekeep/internal/request/models"
	sessionmodels "gatekeep/internal/session/models"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/sentinel"
	"gatekeep/pkg/requestcontext"
)

// RequestStore is the persistence contract the service needs. The in-memory
// table satisfies it directly.
type RequestStore interface {
	Put(ctx context.Context, request models.AccessRequest) (models.AccessRequest, error)
	Get(ctx context.Context, id int64) (models.AccessRequest, error)
	List(ctx context.Context, keep func(models.AccessRequest) bool) ([]models.AccessRequest, error)
	Execute(ctx context.Context, id int64, validate func(models.AccessRequest) error, mutate func(*models.AccessRequest)) (models.AccessRequest, error)
	ListByUser(ctx context.Context, userID int64) ([]models.AccessRequest, error)
	ListPending(ctx context.Context) ([]models.AccessRequest, error)
}

// UserFinder resolves submitters and approvers for role checks.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (identitymodels.User, error)
}

// SessionStarter creates the session that an approval spawns. Implemented
// by the session service.
type SessionStarter interface {
	Start(ctx context.Context, userID, resourceID, requestID int64, accessType string, now, expiresAt time.Time) (sessionmodels.Session, error)
}

// AuditTrail records security events; writes are best-effort.
type AuditTrail interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Publisher fans lifecycle events out to observers.
type Publisher interface {
	Publish(event notify.Event)
}

// Service owns the access-request lifecycle: pending until an approver
// decides, then terminal forever.
type Service struct {
	requests RequestStore
	users    UserFinder
	starter  SessionStarter
	trail    AuditTrail
	bus      Publisher
	tx       StoreTx
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStoreTx overrides the transactional boundary around approval.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// New constructs a request service.
func New(requests RequestStore, users UserFinder, starter SessionStarter, trail AuditTrail, bus Publisher, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		users:    users,
		starter:  starter,
		trail:    trail,
		bus:      bus,
		tx:       newInMemoryStoreTx(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("gatekeep/request"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and stores a new pending request. Submit is the one
// mutating operation that is not retry-safe: every call creates a new
// request, so transports must dedupe retries themselves.
func (s *Service) Submit(ctx context.Context, userID, applicationID, resourceID int64, accessType models.AccessType, durationMinutes int, justification string) (models.AccessRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := models.NewAccessRequest(userID, applicationID, resourceID, accessType, durationMinutes, justification, now)
	if err != nil {
		return models.AccessRequest{}, err
	}

	request, err = s.requests.Put(ctx, request)
	if err != nil {
		return models.AccessRequest{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store request")
	}

	s.trail.Record(ctx, audit.Entry{
		UserID:     userID,
		ResourceID: resourceID,
		Action:     audit.ActionAccessRequestCreated,
		Status:     audit.StatusSuccess,
	})
	s.bus.Publish(notify.Event{Type: notify.EventAccessRequestCreated, Data: request})
	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
	}

	s.logger.InfoContext(ctx, "access request submitted",
		"request_id", request.ID,
		"user_id", userID,
		"resource_id", resourceID,
		"access_type", accessType,
	)
	return request, nil
}

// Approve flips a pending request to approved and spawns its session, as
// one logical transaction: no observer ever sees an approved request
// without a session or a session without a terminal-approved parent.
//
// durationMinutes overrides the requested duration when positive; approvers
// may shorten or extend grants at decision time.
func (s *Service) Approve(ctx context.Context, requestID, approverID int64, durationMinutes int) (models.AccessRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.approve")
	defer span.End()

	approver, err := s.authorizeApprover(ctx, approverID)
	if err != nil {
		return models.AccessRequest{}, err
	}

	now := requestcontext.Now(ctx)
	var (
		request models.AccessRequest
		session sessionmodels.Session
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.Execute(txCtx, requestID,
			func(r models.AccessRequest) error { return r.CanDecide() },
			func(r *models.AccessRequest) {
				duration := r.DurationMinutes
				if durationMinutes > 0 {
					duration = durationMinutes
				}
				expiresAt := now.Add(time.Duration(duration) * time.Minute)
				r.ApplyApproval(approver.ID, now, expiresAt)
			},
		)
		if err != nil {
			return err
		}

		session, err = s.starter.Start(txCtx, request.UserID, request.ResourceID, request.ID,
			string(request.AccessType), now, *request.ExpiresAt)
		return err
	})
	if err != nil {
		return models.AccessRequest{}, s.decisionError(err, "approve")
	}

	s.trail.Record(ctx, audit.Entry{
		UserID:     request.UserID,
		SessionID:  session.ID,
		ResourceID: request.ResourceID,
		Action:     audit.ActionAccessRequestApproved,
		Status:     audit.StatusSuccess,
	})
	s.bus.Publish(notify.Event{Type: notify.EventAccessRequestApproved, Data: request})
	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
	}

	s.logger.InfoContext(ctx, "access request approved",
		"request_id", request.ID,
		"approver_id", approver.ID,
		"expires_at", request.ExpiresAt,
	)
	return request, nil
}

// Reject flips a pending request to rejected. No session is created and
// ExpiresAt stays nil.
func (s *Service) Reject(ctx context.Context, requestID, approverID int64) (models.AccessRequest, error) {
	approver, err := s.authorizeApprover(ctx, approverID)
	if err != nil {
		return models.AccessRequest{}, err
	}

	now := requestcontext.Now(ctx)
	request, err := s.requests.Execute(ctx, requestID,
		func(r models.AccessRequest) error { return r.CanDecide() },
		func(r *models.AccessRequest) {
			r.ApplyRejection(approver.ID, now)
		},
	)
	if err != nil {
		return models.AccessRequest{}, s.decisionError(err, "reject")
	}

	s.trail.Record(ctx, audit.Entry{
		UserID:     request.UserID,
		ResourceID: request.ResourceID,
		Action:     audit.ActionAccessRequestRejected,
		Status:     audit.StatusSuccess,
	})
	s.bus.Publish(notify.Event{Type: notify.EventAccessRequestRejected, Data: request})
	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
	}

	s.logger.InfoContext(ctx, "access request rejected",
		"request_id", request.ID,
		"approver_id", approver.ID,
	)
	return request, nil
}

// Get returns one request without visibility filtering; transports should
// prefer ListVisibleTo.
func (s *Service) Get(ctx context.Context, requestID int64) (models.AccessRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AccessRequest{}, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return models.AccessRequest{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load request")
	}
	return request, nil
}

// ListVisibleTo applies the read-time visibility rule: Admin/TPO see every
// request, everyone else sees only their own.
func (s *Service) ListVisibleTo(ctx context.Context, viewerID int64) ([]models.AccessRequest, error) {
	viewer, err := s.users.FindByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown viewer")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load viewer")
	}

	if access.CanApprove(viewer) {
		return s.requests.List(ctx, nil)
	}
	return s.requests.ListByUser(ctx, viewerID)
}

// ListPending returns the approval queue; approvers only.
func (s *Service) ListPending(ctx context.Context, viewerID int64) ([]models.AccessRequest, error) {
	if _, err := s.authorizeApprover(ctx, viewerID); err != nil {
		return nil, err
	}
	return s.requests.ListPending(ctx)
}

// CountPending reports the number of undecided requests, for dashboards.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count pending requests")
	}
	return len(pending), nil
}

func (s *Service) authorizeApprover(ctx context.Context, approverID int64) (identitymodels.User, error) {
	approver, err := s.users.FindByID(ctx, approverID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identitymodels.User{}, dErrors.New(dErrors.CodeUnauthorized, "unknown approver")
		}
		return identitymodels.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approver")
	}
	if !access.CanApprove(approver) {
		return identitymodels.User{}, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	return approver, nil
}

func (s *Service) decisionError(err error, op string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op+" request")
}
