package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/token"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("not-known-to-the-client"))
	require.NoError(t, err)
	return raw
}

func TestIntrospect(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signed(t, jwtlib.MapClaims{
		"sub":   "user-1",
		"iss":   "https://api.elemo.app",
		"aud":   "elemo-web",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"jti":   "abc",
		"scope": "user todo",
		"roles": []any{"admin", "member"},
	})

	info, err := token.Introspect(raw, now)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "user-1", info.Subject)
	require.Equal(t, "https://api.elemo.app", info.Issuer)
	require.Equal(t, []string{"elemo-web"}, info.Audience)
	require.Equal(t, []string{"user", "todo"}, info.Scope)
	require.Equal(t, []string{"admin", "member"}, info.Roles)
	require.Equal(t, "abc", info.JTI)
	require.Equal(t, "HS256", info.Algorithm)
	require.Equal(t, now.Add(time.Hour).Unix(), info.ExpiresAt.Unix())
	require.Equal(t, time.Hour, info.ExpiresIn(now))
}

func TestIntrospect_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := signed(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(-time.Second).Unix()})

	info, err := token.Introspect(raw, now)
	require.NoError(t, err)
	require.False(t, info.Active)
	require.Zero(t, info.ExpiresIn(now))
}

func TestIntrospect_Opaque(t *testing.T) {
	_, err := token.Introspect("a1", time.Now())
	require.ErrorIs(t, err, token.ErrNotJWT)

	info, err := token.Introspect("  ", time.Now())
	require.NoError(t, err)
	require.False(t, info.Active)

	_, err = token.Introspect("x.y.z", time.Now())
	require.Error(t, err)
}
