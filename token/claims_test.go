package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/jrsteele09/osonify-auth/token/tokenfake"
	"github.com/stretchr/testify/require"
)

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	got, err := token.ExpiresAt(tokenfake.AccessToken("u1", exp))
	require.NoError(t, err)
	require.True(t, exp.Equal(got))

	_, err = token.ExpiresAt("not-a-jwt")
	require.True(t, errors.Is(err, errors.ErrMalformedToken))

	_, err = token.ExpiresAt(tokenfake.AccessTokenWithoutExpiry("u1"))
	require.True(t, errors.Is(err, errors.ErrTokenExpiryMiss))
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	require.True(t, token.ExpiresWithin(tokenfake.AccessToken("u1", now.Add(30*time.Second)), time.Minute))
	require.False(t, token.ExpiresWithin(tokenfake.AccessToken("u1", now.Add(10*time.Minute)), time.Minute))
	require.True(t, token.ExpiresWithin(tokenfake.AccessToken("u1", now.Add(-time.Minute)), time.Minute))
	require.False(t, token.ExpiresWithin("opaque-token", time.Minute))
}
