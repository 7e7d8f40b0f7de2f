package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ratecatalog", cfg.App.Name)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.Cron)
	assert.Equal(t, 2*time.Second, cfg.Sweep.Delay)
	assert.Equal(t, "reset-trust", cfg.Sweep.RefreshPolicy)
	assert.Equal(t, 15.0, cfg.Trust.CeilingAPY)
	assert.Equal(t, 20, cfg.Ranking.CandidateLimit)
	assert.Equal(t, 5, cfg.Ranking.TopN)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
sweep:
  delay: 500ms
  concurrency: 3
alerting:
  email:
    enabled: true
    host: smtp.example.com
    from: rates@example.com
    to: ops@example.com,mods@example.com
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("RATECATALOG_RANKING_TOP_N", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Sweep.Delay)
	assert.Equal(t, 3, cfg.Sweep.Concurrency)
	assert.Equal(t, 3, cfg.Ranking.TopN)
	assert.Equal(t, []string{"ops@example.com", "mods@example.com"}, cfg.Alerting.Email.To)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"bad cron":          func(c *Config) { c.Scheduler.Cron = "every night" },
		"zero concurrency":  func(c *Config) { c.Sweep.Concurrency = 0 },
		"unknown policy":    func(c *Config) { c.Sweep.RefreshPolicy = "keep" },
		"flat multiple":     func(c *Config) { c.Trust.OutlierMultiple = 1 },
		"ai without key":    func(c *Config) { c.AI.Enabled = true },
		"telegram no token": func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"email no rcpt": func(c *Config) {
			c.Alerting.Email = EmailConfig{Enabled: true, Host: "smtp", From: "a@b.c"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveOverrides(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20, cfg.ResolveCandidateLimit(0))
	assert.Equal(t, 7, cfg.ResolveCandidateLimit(7))
	assert.Equal(t, 10000, cfg.ResolveMaxRecords(-1))
	assert.Equal(t, 50, cfg.ResolveMaxRecords(50))
}
