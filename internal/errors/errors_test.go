package errors_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "load slot %s", "auth-storage"))
	})

	t.Run("wraps with context", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrNotFound, "load slot %s", "auth-storage")
		require.EqualError(t, err, "load slot auth-storage: not found")
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}
