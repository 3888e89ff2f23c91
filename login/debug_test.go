//go:build !production

package login_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/osonify-auth/authapi"
	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/login"
	"github.com/stretchr/testify/require"
)

func TestFlows_Debug(t *testing.T) {
	t.Run("skip validation uses the placeholder profile", func(t *testing.T) {
		f := setupTestFixture(t, login.WithDebugMode(true))

		require.NoError(t, f.flows.Debug(context.Background(), "abc123", true))

		snap := f.manager.Snapshot()
		require.True(t, snap.IsAuthenticated)
		require.Equal(t, &authmodel.TokenPair{AccessToken: "abc123", RefreshToken: "abc123"}, snap.Tokens)
		require.Equal(t, "debug-user", snap.User.ID)
		require.Equal(t, "debug_user", snap.User.Username)
		require.True(t, *snap.User.IsAdmin)
		require.Equal(t, "debug-plan", snap.User.Plan.ID)
		require.Zero(t, f.backend.Count(authapi.ProfilePath))
	})

	t.Run("validated token uses the backend profile", func(t *testing.T) {
		f := setupTestFixture(t, login.WithDebugMode(true))
		f.backend.AddUser("real", authmodel.UserProfile{ID: "u7", FirstName: "Linus"})

		require.NoError(t, f.flows.Debug(context.Background(), "real", false))
		require.Equal(t, "u7", f.manager.Snapshot().User.ID)
		require.Equal(t, []string{"Bearer real"}, f.backend.AuthHeaders(authapi.ProfilePath))
	})

	t.Run("invalid token falls back to the placeholder", func(t *testing.T) {
		f := setupTestFixture(t, login.WithDebugMode(true))

		require.NoError(t, f.flows.Debug(context.Background(), "bogus", false))
		require.Equal(t, "debug-user", f.manager.Snapshot().User.ID)
		require.Equal(t, 1, f.backend.Count(authapi.ProfilePath))
	})

	t.Run("disabled at runtime", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.flows.Debug(context.Background(), "abc123", true)
		require.ErrorIs(t, err, errors.ErrDebugLoginDisabled)
		require.False(t, f.manager.Snapshot().IsAuthenticated)
	})

	t.Run("empty token", func(t *testing.T) {
		f := setupTestFixture(t, login.WithDebugMode(true))
		require.ErrorIs(t, f.flows.Debug(context.Background(), "", true), errors.ErrMalformedToken)
	})
}
