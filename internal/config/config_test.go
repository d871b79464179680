package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Balancer.Window)
	assert.InDelta(t, 0.3, cfg.Balancer.ExplorationCap, 1e-9)
	assert.InDelta(t, 2.0, cfg.Balancer.LinkWeight, 1e-9)
	assert.Equal(t, "55", cfg.Redirect.CountryCode)
	assert.False(t, cfg.Redis.Enabled())
	assert.Contains(t, cfg.Server.TrustedProxies, "10.0.0.0/8")
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/wa?sslmode=disable")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("BALANCER_WINDOW", "6h")
	t.Setenv("BALANCER_EXPLORATION_CAP", "0.5")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TRUSTED_PROXIES", "10.1.0.0/16, 2001:db8::/32")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/wa?sslmode=disable", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 6*time.Hour, cfg.Balancer.Window)
	assert.InDelta(t, 0.5, cfg.Balancer.ExplorationCap, 1e-9)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "production", cfg.Log.Environment)
	assert.Equal(t, []string{"10.1.0.0/16", "2001:db8::/32"}, cfg.Server.TrustedProxies)
}

func TestLoadTrustNoProxies(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "7000"
  read_timeout: 5s
balancer:
  window: 12h
  link_weight: 3
redirect:
  default_message: "Hello from file"
admin:
  token: file-token
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_TOKEN", "env-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 12*time.Hour, cfg.Balancer.Window)
	assert.InDelta(t, 3.0, cfg.Balancer.LinkWeight, 1e-9)
	assert.Equal(t, "Hello from file", cfg.Redirect.DefaultMessage)
	assert.Equal(t, "env-token", cfg.Admin.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = "70000" }, true},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"bad environment", func(c *Config) { c.App.Environment = "staging" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, true},
		{"exploration cap above one", func(c *Config) { c.Balancer.ExplorationCap = 1.5 }, true},
		{"jitter bounds inverted", func(c *Config) { c.Balancer.JitterMax = 0.05 }, true},
		{"zero window", func(c *Config) { c.Balancer.Window = 0 }, true},
		{"unknown queue", func(c *Config) { c.Geo.Queue = "kafka" }, true},
		{"redis queue without redis", func(c *Config) { c.Geo.Queue = "redis" }, true},
		{"redis queue with redis", func(c *Config) {
			c.Geo.Queue = "redis"
			c.Redis.Addr = "localhost:6379"
		}, false},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.1"} }, true},
		{"country code with letters", func(c *Config) { c.Redirect.CountryCode = "BR" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
