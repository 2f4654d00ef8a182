package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-portal/internal/config"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears vars for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "ENV", "API_BASE_URL", "STORAGE_DRIVER", "AUTH_STORAGE_SLOT", "GOOGLE_ISSUER", "GOOGLE_CLIENT_ID",
		"SESSION_IDLE_TIMEOUT", "SWEEP_INTERVAL")

	c, err := config.FromEnv()
	require.NoError(t, err)
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, config.StorageFile, c.GetStorageDriver())
	require.Equal(t, "auth-storage", c.GetStorageSlot())
	require.Equal(t, 30*time.Minute, c.GetSessionIdleTimeout())
	require.Equal(t, time.Minute, c.GetSweepInterval())
	require.Equal(t, "https://accounts.google.com", c.GetGoogleIssuer())
	require.False(t, c.GoogleEnabled())
	require.Empty(t, c.GetAPIBaseURL())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("DATA_FOLDER", "/tmp/portal")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SESSION_IDLE_TIMEOUT", "2h")

	c, err := config.FromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, config.StorageSQLite, c.GetStorageDriver())
	require.Equal(t, "/tmp/portal/portal.db", c.GetSQLitePath())
	require.Equal(t, 2*time.Hour, c.GetSessionIdleTimeout())
	require.True(t, c.GoogleEnabled())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))
}
