package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/internal/config"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8080", c.GetOrigin())
	require.Equal(t, "http://localhost:8080/api", c.GetAPIBaseURL())
	require.Equal(t, "http://localhost:8080/admin-api", c.GetAdminAPIBaseURL())
	require.Equal(t, "http://localhost:8080/push", c.GetPushURL())
	require.Equal(t, 30*time.Second, c.GetHTTPTimeout())
	require.Equal(t, ":8080", c.GetDevServerPort())
	require.Equal(t, 5*time.Minute, c.GetStaleTime())
	require.Equal(t, 10*time.Minute, c.GetGCTime())
	require.Equal(t, 10, c.GetPushMaxAttempts())
	require.Equal(t, time.Second, c.GetPushInitialDelay())
	require.Equal(t, 30*time.Second, c.GetPushMaxDelay())
	require.Equal(t, []string{"websocket", "polling"}, c.GetPushTransports())
	require.Equal(t, "/auth/refresh", c.GetTenantEndpoints().Refresh)
	require.Equal(t, "/admin/auth/refresh", c.GetAdminEndpoints().Refresh)
	require.NoError(t, c.Validate())
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ORIGIN", "https://hr.example.com/")
	t.Setenv("ADMIN_API_BASE_URL", "https://admin.example.com/v2/")
	t.Setenv("PUSH_TRANSPORTS", " Polling ")
	t.Setenv("CACHE_STALE_TIME", "30s")
	t.Setenv("DEVSERVER_PORT", ":9000")

	c := config.New()

	require.Equal(t, "https://hr.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, "https://admin.example.com/v2", c.GetAdminAPIBaseURL())
	require.Equal(t, []string{"polling"}, c.GetPushTransports())
	require.Equal(t, 30*time.Second, c.GetStaleTime())
	require.Equal(t, ":9000", c.GetDevServerPort())
	require.NoError(t, c.Validate())
}

func TestConfig_File(t *testing.T) {
	t.Run("file values apply", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yaml")
		require.NoError(t, os.WriteFile(path, []byte("origin: http://hr.internal:9090\npush_max_attempts: 3\n"), 0o600))

		c, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, "http://hr.internal:9090/api", c.GetAPIBaseURL())
		require.Equal(t, 3, c.GetPushMaxAttempts())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("unknown transport", func(t *testing.T) {
		t.Setenv("PUSH_TRANSPORTS", "websocket,carrier-pigeon")
		err := config.New().Validate()
		require.ErrorIs(t, err, wferrors.ErrInvalidConfig)
		require.Contains(t, err.Error(), "Transports")
	})

	t.Run("gc shorter than stale time", func(t *testing.T) {
		t.Setenv("CACHE_STALE_TIME", "10m")
		t.Setenv("CACHE_GC_TIME", "1m")
		err := config.New().Validate()
		require.ErrorIs(t, err, wferrors.ErrInvalidConfig)
		require.Contains(t, err.Error(), "GCTime")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		require.ErrorIs(t, config.New().Validate(), wferrors.ErrInvalidConfig)
	})
}
