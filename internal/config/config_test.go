package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
worker:
  id: "worker-a"
  interval_seconds: 120
  lock_ttl_seconds: 900
  critical_steps: ["SendEmails"]

email:
  provider: "ses"
  from_email: "hello@example.com"
  daily_cap: 40
  batch_cap: 10
  dry_run: true

imap:
  server: "imap.example.com"
  email: "replies@example.com"

decision:
  auto_pause_enabled: true
  reply_rate_threshold: 0.05
  min_sends_to_evaluate: 25

alert:
  emails: ["ops@example.com"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "worker-a", cfg.Worker.ID)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Worker.Interval())
	assert.Equal(t, 15*time.Minute, cfg.Worker.LockTTL())
	assert.Equal(t, []string{"SendEmails"}, cfg.Worker.CriticalSteps)

	assert.Equal(t, "ses", cfg.Email.Provider)
	assert.Equal(t, 40, cfg.Email.DailyCap)
	assert.Equal(t, 10, cfg.Email.BatchCap)
	assert.True(t, cfg.Email.DryRun)
	assert.True(t, cfg.Email.RetryFailed)

	assert.Equal(t, "imap.example.com:993", cfg.IMAP.Address())
	assert.True(t, cfg.Decision.AutoPauseEnabled)
	assert.Equal(t, 0.05, cfg.Decision.ReplyRateThreshold)
	assert.Equal(t, 25, cfg.Decision.MinSendsToEvaluate)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Alert.Emails)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("email:\n  from_email: a@b.co\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Worker.IntervalSeconds)
	assert.Equal(t, 600, cfg.Worker.LockTTLSeconds)
	assert.Equal(t, "postgres", cfg.Worker.LockBackend)
	assert.Equal(t, []string{"email.send", "inbox.fetch", "alert.send"}, cfg.Worker.CriticalCapabilities)
	assert.Equal(t, []string{"SendEmails", "PollInbox", "DispatchAlerts"}, cfg.Worker.CriticalSteps)
	assert.Equal(t, "resend", cfg.Email.Provider)
	assert.Equal(t, 30*time.Second, cfg.Email.Timeout())
	assert.Equal(t, 100, cfg.Email.DailyCap)
	assert.Equal(t, 20, cfg.Email.BatchCap)
	assert.Equal(t, 50, cfg.Campaign.DailyBatchSize)
	assert.False(t, cfg.Decision.AutoPauseEnabled)
	assert.False(t, cfg.FollowUp.AllowRequalification)
	assert.Equal(t, 72*time.Hour, cfg.Nurture.NoReplyWindow())
	assert.Equal(t, 5*time.Minute, cfg.IMAP.PollInterval())
	assert.False(t, cfg.Email.RetryFailed)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("email:\n  daily_cap: 10\n"), 0644))

	t.Setenv("CAM_EMAIL_DAILY_CAP", "2")
	t.Setenv("CAM_EMAIL_DRY_RUN", "true")
	t.Setenv("CAM_EMAIL_RETRY_FAILED", "true")
	t.Setenv("CAM_AUTO_PAUSE_ENABLE", "1")
	t.Setenv("CAM_AUTO_PAUSE_REPLY_RATE_THRESHOLD", "0.02")
	t.Setenv("AICMO_CAM_WORKER_ENABLED", "false")
	t.Setenv("AICMO_CAM_WORKER_ID", "env-worker")
	t.Setenv("AICMO_CAM_ALERT_EMAILS", "a@x.io, b@y.io,")
	t.Setenv("IMAP_PORT", "143")
	t.Setenv("CAM_OPS_CORS_ORIGINS", "https://ops.acme.io")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Email.DailyCap)
	assert.True(t, cfg.Email.DryRun)
	assert.True(t, cfg.Decision.AutoPauseEnabled)
	assert.Equal(t, 0.02, cfg.Decision.ReplyRateThreshold)
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, "env-worker", cfg.Worker.ID)
	assert.Equal(t, []string{"a@x.io", "b@y.io"}, cfg.Alert.Emails)
	assert.Equal(t, 143, cfg.IMAP.Port)
	assert.Equal(t, []string{"https://ops.acme.io"}, cfg.Ops.CORSOrigins)
}

func TestLoadFromEnvMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Email.DailyCap)
	assert.True(t, cfg.Worker.Enabled)
}

func TestLoadFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("CAM_EMAIL_BATCH_CAP", "ten")
	_, err := LoadFromEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAM_EMAIL_BATCH_CAP")
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Database.URL = "postgres://localhost/cam"
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	cfg.Worker.LockTTLSeconds = cfg.Worker.IntervalSeconds
	cfg.Email.AllowlistRegex = "(["
	warnings, err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowlist_regex")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "lock ttl")
}
