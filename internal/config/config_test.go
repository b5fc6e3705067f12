package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.TickInterval)
	assert.Equal(t, time.Hour, cfg.Monitor.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Monitor.HealthTimeout)
	assert.False(t, cfg.Monitor.RequireHealth)
	assert.Equal(t, ProviderNone, cfg.Registrar.Provider)
	assert.Equal(t, NotifyLog, cfg.Notify.Provider)
	assert.Equal(t, []string{"8.8.8.8:53", "1.1.1.1:53"}, cfg.Platform.Nameservers)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACTIVATOR_DATABASE_URL", "postgres://localhost/activator")
	t.Setenv("ACTIVATOR_PLATFORM_CNAME_TARGET", "sites.platform.test")
	t.Setenv("ACTIVATOR_MONITOR_TICK_INTERVAL", "30s")
	t.Setenv("ACTIVATOR_MONITOR_REQUIRE_HEALTH", "true")
	t.Setenv("ACTIVATOR_REGISTRAR_PROVIDER", "rest")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/activator", cfg.Database.URL)
	assert.Equal(t, "sites.platform.test", cfg.Platform.CNAMETarget)
	assert.Equal(t, 30*time.Second, cfg.Monitor.TickInterval)
	assert.True(t, cfg.Monitor.RequireHealth)
	assert.Equal(t, ProviderREST, cfg.Registrar.Provider)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverSQLite, URL: "file:test.db"},
			Monitor:  MonitorConfig{TickInterval: 5 * time.Minute, Timeout: time.Hour},
			Registrar: RegistrarConfig{
				Provider: ProviderNone,
			},
			Notify: NotifyConfig{Provider: NotifyLog},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("rest provider needs base url", func(t *testing.T) {
		cfg := valid()
		cfg.Registrar.Provider = ProviderREST
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registrar.base_url")
	})

	t.Run("timeout shorter than interval", func(t *testing.T) {
		cfg := valid()
		cfg.Monitor.Timeout = time.Minute
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Driver = "mysql"
		assert.ErrorContains(t, cfg.Validate(), "unknown driver")
	})

	t.Run("api needs jwt secret", func(t *testing.T) {
		cfg := valid()
		assert.ErrorContains(t, cfg.ValidateAPI(), "auth.jwt_secret")
		cfg.Auth.JWTSecret = "s3cret"
		assert.NoError(t, cfg.ValidateAPI())
	})
}
