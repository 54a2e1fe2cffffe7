package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeep/internal/audit"
	auditmemory "gatekeep/internal/audit/store/memory"
	identitymodels "gatekeep/internal/identity/models"
	identitystore "gatekeep/internal/identity/store"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/requestcontext"
)

func newTrailFixture(t *testing.T) (*audit.Trail, *identitystore.InMemory, context.Context) {
	t.Helper()
	users := identitystore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := audit.New(auditmemory.NewInMemoryStore(), users, audit.WithLogger(logger))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	return trail, users, ctx
}

func TestRecordFillsContextMetadata(t *testing.T) {
	trail, users, ctx := newTrailFixture(t)
	admin, err := users.Put(ctx, identitymodels.User{Role: identitymodels.RoleAdmin, Active: true})
	require.NoError(t, err)

	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.9", "curl/8.0")
	trail.Record(ctx, audit.Entry{UserID: admin.ID, Action: audit.ActionLogin, Status: audit.StatusSuccess})

	entries, err := trail.ListVisibleTo(ctx, admin.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "10.0.0.9", entries[0].IPAddress)
	assert.Equal(t, "curl/8.0", entries[0].UserAgent)
	assert.Equal(t, requestcontext.Now(ctx), entries[0].Timestamp)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("store down")
}
func (failingStore) ListRecent(context.Context, int) ([]audit.Entry, error) { return nil, nil }
func (failingStore) ListByUser(context.Context, int64) ([]audit.Entry, error) {
	return nil, nil
}

func TestRecordSwallowsStoreFailures(t *testing.T) {
	users := identitystore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := audit.New(failingStore{}, users, audit.WithLogger(logger))

	// Must not panic or surface the error.
	trail.Record(context.Background(), audit.Entry{Action: audit.ActionLogin, Status: audit.StatusSuccess})
}

func TestListVisibleToRejectsNonPrivilegedViewers(t *testing.T) {
	trail, users, ctx := newTrailFixture(t)
	dev, err := users.Put(ctx, identitymodels.User{Role: identitymodels.RoleDeveloper, Active: true})
	require.NoError(t, err)

	_, err = trail.ListVisibleTo(ctx, dev.ID, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = trail.ListVisibleTo(ctx, 999, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestListVisibleToReturnsNewestFirstWithLimit(t *testing.T) {
	trail, users, ctx := newTrailFixture(t)
	admin, err := users.Put(ctx, identitymodels.User{Role: identitymodels.RoleTPO, Active: true})
	require.NoError(t, err)

	base := requestcontext.Now(ctx)
	for i := 0; i < 3; i++ {
		trail.Record(ctx, audit.Entry{
			UserID:    admin.ID,
			Action:    audit.ActionLogin,
			Status:    audit.StatusSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	entries, err := trail.ListVisibleTo(ctx, admin.ID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, base.Add(2*time.Minute), entries[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), entries[1].Timestamp)
}
