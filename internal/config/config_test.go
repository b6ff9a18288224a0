package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := chdir(t)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/pricekeeper.db", cfg.Database.SQLitePath)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.Provider.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Provider.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Provider.RetryDelay)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, "0 0 * * * *", cfg.Schedule.SweepCron)
	assert.Zero(t, cfg.Retention.DaysToKeep)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  postgres_url: postgres://file/db
provider:
  timeout: 5s
  retry_delay: 250ms
cache:
  enabled: false
retention:
  days_to_keep: 365
logging:
  format: pretty
`), 0o644))

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PROVIDER_RATE_LIMIT", "2")
	t.Setenv("SYMBOLS_FILE", "configs/symbols.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env/db", cfg.Database.PostgresURL, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Provider.RetryDelay)
	assert.Equal(t, 2, cfg.Provider.RateLimit)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, 365, cfg.Retention.DaysToKeep)
	assert.Equal(t, "configs/symbols.yaml", cfg.Symbols.File)
	assert.Equal(t, "pretty", cfg.Logging.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RETENTION_DAYS=90\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("RETENTION_DAYS") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Retention.DaysToKeep)
	assert.Equal(t, "warn", cfg.Logging.Level, "process env beats .env")
}

func TestLoad_BadEnv(t *testing.T) {
	chdir(t)
	t.Setenv("CACHE_ENABLED", "sometimes")

	_, err := Load("")
	assert.ErrorContains(t, err, "CACHE_ENABLED")
}

func TestLoad_BadYAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	chdir(t)
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, "postgres_url"},
		{"negative retention", func(c *Config) { c.Retention.DaysToKeep = -1 }, "days_to_keep"},
		{"bad cron", func(c *Config) { c.Schedule.RefreshCron = "weekdays" }, "schedule.refresh_cron"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero retries", func(c *Config) { c.Provider.RetryAttempts = 0 }, "retry_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := base()
	cfg.Schedule.CleanupCron = "-"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "", CronSpec(cfg.Schedule.CleanupCron))
	assert.Equal(t, "0 0 * * * *", CronSpec(cfg.Schedule.SweepCron))
}
