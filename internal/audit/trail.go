package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gatekeep/internal/access"
	"gatekeep/internal/identity/models"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/sentinel"
	"gatekeep/pkg/requestcontext"
)

var appendFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gatekeep_audit_append_failures_total",
	Help: "Audit entries that could not be persisted",
})

// UserFinder resolves the viewer for the role-gated listing.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
}

// Trail is the write/read facade over the audit store. Writes are
// best-effort relative to the state transition that triggered them: the
// transition has already been applied by the time Record runs, and a store
// failure here is logged, counted, and swallowed.
type Trail struct {
	store  Store
	users  UserFinder
	logger *slog.Logger
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets the logger used for append failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) { t.logger = logger }
}

// New constructs a Trail.
func New(store Store, users UserFinder, opts ...Option) *Trail {
	t := &Trail{store: store, users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends one entry, filling timestamp and client metadata from the
// request context when the caller left them empty.
func (t *Trail) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	if _, err := t.store.Append(ctx, entry); err != nil {
		appendFailures.Inc()
		t.logger.ErrorContext(ctx, "audit append failed",
			"action", entry.Action,
			"user_id", entry.UserID,
			"error", err,
		)
	}
}

// ListVisibleTo returns the most recent entries, newest first. Only
// Admin/TPO viewers may read the trail; everyone else gets forbidden, never
// partial data.
func (t *Trail) ListVisibleTo(ctx context.Context, viewerID int64, limit int) ([]Entry, error) {
	viewer, err := t.users.FindByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown viewer")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load viewer")
	}
	if !access.CanManageAllSessions(viewer) {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	entries, err := t.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list audit entries")
	}
	return entries, nil
}
