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
	"gatekeep/internal/session/metrics"
	"gatekeep/internal/session/models"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/sentinel"
	"gatekeep/pkg/requestcontext"
)

// SessionStore is the persistence contract the service needs. The in-memory
// table satisfies it directly.
type SessionStore interface {
	Put(ctx context.Context, session models.Session) (models.Session, error)
	Get(ctx context.Context, id int64) (models.Session, error)
	List(ctx context.Context, keep func(models.Session) bool) ([]models.Session, error)
	Execute(ctx context.Context, id int64, validate func(models.Session) error, mutate func(*models.Session)) (models.Session, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Session, error)
	ListDue(ctx context.Context, now time.Time) ([]int64, error)
}

// UserFinder resolves actors for role and ownership checks.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (identitymodels.User, error)
}

// AuditTrail records security events; writes are best-effort.
type AuditTrail interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Publisher fans lifecycle events out to observers.
type Publisher interface {
	Publish(event notify.Event)
}

// Service owns the session lifecycle: active until terminated manually or
// expired by the background sweep, both terminal.
type Service struct {
	sessions SessionStore
	users    UserFinder
	trail    AuditTrail
	bus      Publisher
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

// New constructs a session service.
func New(sessions SessionStore, users UserFinder, trail AuditTrail, bus Publisher, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		users:    users,
		trail:    trail,
		bus:      bus,
		logger:   slog.Default(),
		tracer:   otel.Tracer("gatekeep/session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the active session for a freshly approved request. It is
// called by the request service inside its approval transaction, so a
// session never exists without a terminal-approved parent request.
func (s *Service) Start(ctx context.Context, userID, resourceID, requestID int64, accessType string, now, expiresAt time.Time) (models.Session, error) {
	session, err := s.sessions.Put(ctx, models.NewSession(userID, resourceID, requestID, accessType, now, expiresAt))
	if err != nil {
		return models.Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create session")
	}

	s.bus.Publish(notify.Event{Type: notify.EventSessionCreated, Data: session})
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	return session, nil
}

// Terminate ends an active session early. The actor must be Admin/TPO or
// the session owner; the ownership check runs inside the store lock so it
// sees the same record the flip applies to.
func (s *Service) Terminate(ctx context.Context, sessionID, actorID int64) (models.Session, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Session{}, dErrors.New(dErrors.CodeUnauthorized, "unknown actor")
		}
		return models.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor")
	}

	now := requestcontext.Now(ctx)
	session, err := s.sessions.Execute(ctx, sessionID,
		func(sess models.Session) error {
			if !access.CanManageAllSessions(actor) && sess.UserID != actorID {
				return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
			}
			return sess.CanTransition()
		},
		func(sess *models.Session) {
			sess.ApplyTermination(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Session{}, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		if dErrors.HasCode(err, dErrors.CodeForbidden) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return models.Session{}, err
		}
		return models.Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to terminate session")
	}

	s.trail.Record(ctx, audit.Entry{
		UserID:     actorID,
		SessionID:  session.ID,
		ResourceID: session.ResourceID,
		Action:     audit.ActionSessionTerminated,
		Status:     audit.StatusSuccess,
	})
	s.bus.Publish(notify.Event{Type: notify.EventSessionTerminated, Data: session})
	if s.metrics != nil {
		s.metrics.SessionsTerminated.Inc()
	}
	return session, nil
}

// SweepExpired transitions every active, past-due session to expired. It is
// idempotent: a session already flipped (by a previous sweep or a racing
// terminate) fails the due re-check under the lock and is skipped without
// an audit entry or event. Returns the number of sessions expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "session.sweep_expired")
	defer span.End()
	start := time.Now()

	due, err := s.sessions.ListDue(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list due sessions")
	}

	expired := 0
	for _, id := range due {
		session, err := s.sessions.Execute(ctx, id,
			func(sess models.Session) error {
				if !sess.Due(now) {
					return errNotDue
				}
				return nil
			},
			func(sess *models.Session) {
				sess.ApplyExpiry(now)
			},
		)
		if err != nil {
			// Lost the race to a terminate or an earlier sweep; not an error.
			if errors.Is(err, errNotDue) || errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return expired, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to expire session")
		}

		s.trail.Record(ctx, audit.Entry{
			UserID:     session.UserID,
			SessionID:  session.ID,
			ResourceID: session.ResourceID,
			Action:     audit.ActionSessionExpired,
			Status:     audit.StatusSuccess,
			Timestamp:  now,
		})
		s.bus.Publish(notify.Event{Type: notify.EventSessionExpired, Data: session})
		expired++
	}

	if s.metrics != nil {
		s.metrics.SessionsExpired.Add(float64(expired))
		s.metrics.ObserveSweep(start)
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired sessions swept", "count", expired)
	}
	return expired, nil
}

var errNotDue = errors.New("session no longer due")

// RecordCommand increments the command counter on an active session. The
// terminal-state answer is an invalid-transition error rather than a silent
// no-op so interactive trackers learn their session ended.
func (s *Service) RecordCommand(ctx context.Context, sessionID int64) (models.Session, error) {
	session, err := s.sessions.Execute(ctx, sessionID,
		func(sess models.Session) error { return sess.CanTransition() },
		func(sess *models.Session) { sess.CommandCount++ },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Session{}, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return models.Session{}, err
		}
		return models.Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record command")
	}
	return session, nil
}

// Get returns one session without any visibility filtering; transports
// should prefer ListVisibleTo.
func (s *Service) Get(ctx context.Context, sessionID int64) (models.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Session{}, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return models.Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load session")
	}
	return session, nil
}

// ListVisibleTo applies the read-time visibility rule: Admin/TPO see every
// session, everyone else sees only their own.
func (s *Service) ListVisibleTo(ctx context.Context, viewerID int64) ([]models.Session, error) {
	viewer, err := s.users.FindByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown viewer")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load viewer")
	}

	if access.CanManageAllSessions(viewer) {
		return s.sessions.List(ctx, nil)
	}
	return s.sessions.ListByUser(ctx, viewerID)
}

// CountActive reports the number of active sessions, for dashboards.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	active, err := s.sessions.List(ctx, func(sess models.Session) bool {
		return sess.Status == models.StatusActive
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count sessions")
	}
	return len(active), nil
}
