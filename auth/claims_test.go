package auth_test

import (
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-login-portal/auth"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestUserFromToken(t *testing.T) {
	t.Run("reads display claims without verifying", func(t *testing.T) {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub":   "user-1",
			"email": "user@example.com",
			"name":  "Test User",
		}).SignedString([]byte("some-other-key"))
		require.NoError(t, err)

		user, err := auth.UserFromToken(raw)
		require.NoError(t, err)
		require.Equal(t, &auth.User{ID: "user-1", Email: "user@example.com", Name: "Test User"}, user)
		require.Equal(t, "Test User", user.DisplayName())
	})

	t.Run("display name falls back to email", func(t *testing.T) {
		user := &auth.User{Email: "user@example.com"}
		require.Equal(t, "user@example.com", user.DisplayName())

		var missing *auth.User
		require.Empty(t, missing.DisplayName())
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := auth.UserFromToken("mock-jwt-token")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
