package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/auth"
	"github.com/digestmail/digestmail/internal/config"
)

func TestTokenService(t *testing.T) {
	t.Parallel()

	t.Run("issues and validates", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTokenService(config.SecurityConfig{TokenSecret: "s3cret", Issuer: "digestmail", TokenTTL: time.Hour})
		require.True(t, svc.Enabled())

		tok, expires, err := svc.Issue("editor")
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

		claims, err := svc.Validate(tok)
		require.NoError(t, err)
		require.Equal(t, "editor", claims.Subject)
		require.Equal(t, "digestmail", claims.Issuer)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		t.Parallel()

		other := auth.NewTokenService(config.SecurityConfig{TokenSecret: "other"})
		tok, _, err := other.Issue("editor")
		require.NoError(t, err)

		_, err = auth.NewTokenService(config.SecurityConfig{TokenSecret: "s3cret"}).Validate(tok)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		_, err := auth.NewTokenService(config.SecurityConfig{TokenSecret: "s3cret"}).Validate("not.a.token")
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("disabled without a secret", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTokenService(config.SecurityConfig{})
		require.False(t, svc.Enabled())
		_, _, err := svc.Issue("editor")
		require.ErrorIs(t, err, auth.ErrAuthDisabled)
	})
}
