//go:build integration

package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeep/pkg/testutil/containers"
)

func TestRedisTRL(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	trl := NewRedisTRL(rc.Client)

	t.Run("revoked jti is reported until ttl lapses", func(t *testing.T) {
		require.NoError(t, trl.Revoke(ctx, "jti-1", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("unknown jti is not revoked", func(t *testing.T) {
		revoked, err := trl.IsRevoked(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("empty jti is a no-op", func(t *testing.T) {
		require.NoError(t, trl.Revoke(ctx, "", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("entry disappears after ttl", func(t *testing.T) {
		require.NoError(t, trl.Revoke(ctx, "short-lived", 200*time.Millisecond))
		time.Sleep(400 * time.Millisecond)

		revoked, err := trl.IsRevoked(ctx, "short-lived")
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}
