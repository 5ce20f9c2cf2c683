package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach worker
type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Campaign CampaignConfig `yaml:"campaign"`
	Email    EmailConfig    `yaml:"email"`
	IMAP     IMAPConfig     `yaml:"imap"`
	Decision DecisionConfig `yaml:"decision"`
	FollowUp FollowUpConfig `yaml:"followup"`
	Nurture  NurtureConfig  `yaml:"nurture"`
	Alert    AlertConfig    `yaml:"alert"`
	Events   EventsConfig   `yaml:"events"`
	Journal  JournalConfig  `yaml:"journal"`
	Ops      OpsConfig      `yaml:"ops"`
	Log      LogConfig      `yaml:"log"`
}

// WorkerConfig controls the orchestration loop and its lock
type WorkerConfig struct {
	ID              string `yaml:"id"`
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	LockBackend     string `yaml:"lock_backend"` // "postgres" or "redis"
	LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	// CriticalSteps decide cycle success; CriticalCapabilities gate startup.
	CriticalSteps        []string `yaml:"critical_steps"`
	CriticalCapabilities []string `yaml:"critical_capabilities"`
}

// Interval returns the pause between cycles.
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL returns the heartbeat freshness window.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DatabaseConfig holds the Postgres connection string
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the optional Redis lock backend address
type RedisConfig struct {
	URL string `yaml:"url"`
}

// CampaignConfig holds the bootstrap campaign and per-step batch size
type CampaignConfig struct {
	DefaultName    string `yaml:"default_name"`
	DailyBatchSize int    `yaml:"daily_batch_size"`
}

// EmailConfig holds provider credentials and sending guardrails
type EmailConfig struct {
	Provider       string `yaml:"provider"` // "resend" or "ses"
	ResendAPIKey   string `yaml:"resend_api_key"`
	ResendBaseURL  string `yaml:"resend_base_url"`
	FromEmail      string `yaml:"from_email"`
	DailyCap       int    `yaml:"daily_cap"`
	BatchCap       int    `yaml:"batch_cap"`
	DryRun         bool   `yaml:"dry_run"`
	RetryFailed    bool   `yaml:"retry_failed"`
	AllowlistRegex string `yaml:"allowlist_regex"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	SESRegion      string `yaml:"ses_region"`
	SESAccessKey   string `yaml:"ses_access_key"`
	SESSecretKey   string `yaml:"ses_secret_key"`
}

// Timeout returns the provider HTTP timeout.
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IMAPConfig holds reply mailbox credentials
type IMAPConfig struct {
	Server              string `yaml:"server"`
	Port                int    `yaml:"port"`
	Email               string `yaml:"email"`
	Password            string `yaml:"password"`
	Mailbox             string `yaml:"mailbox"`
	PollIntervalMinutes int    `yaml:"poll_interval_minutes"`
}

// Address returns host:port for dialing.
func (c IMAPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// PollInterval returns the minimum gap between mailbox polls.
func (c IMAPConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// DecisionConfig holds the auto-pause policy
type DecisionConfig struct {
	AutoPauseEnabled   bool    `yaml:"auto_pause_enabled"`
	ReplyRateThreshold float64 `yaml:"reply_rate_threshold"`
	MinSendsToEvaluate int     `yaml:"min_sends_to_evaluate"`
}

// FollowUpConfig holds lead transition policy
type FollowUpConfig struct {
	AllowRequalification bool `yaml:"allow_requalification"`
}

// NurtureConfig holds sequence advancement settings
type NurtureConfig struct {
	NoReplyWindowHours int    `yaml:"no_reply_window_hours"`
	DefaultSequence    string `yaml:"default_sequence"`
}

// NoReplyWindow returns the wait after a send before the next step.
func (c NurtureConfig) NoReplyWindow() time.Duration {
	return time.Duration(c.NoReplyWindowHours) * time.Hour
}

// AlertConfig holds the human notification recipients
type AlertConfig struct {
	Emails []string `yaml:"emails"`
}

// EventsConfig holds the SQS domain event sink
type EventsConfig struct {
	SQSQueueURL string `yaml:"sqs_queue_url"`
	Region      string `yaml:"region"`
}

// JournalConfig holds the S3 cycle journal sink
type JournalConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	Region   string `yaml:"region"`
}

// OpsConfig holds the health/metrics listener
type OpsConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LogConfig selects the logger encoder and level
type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Worker.Enabled = true
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Worker: WorkerConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Worker.ID == "" {
		host, _ := os.Hostname()
		cfg.Worker.ID = "cam-worker-" + host
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 300
	}
	if cfg.Worker.LockBackend == "" {
		cfg.Worker.LockBackend = "postgres"
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 600
	}
	if len(cfg.Worker.CriticalSteps) == 0 {
		cfg.Worker.CriticalSteps = []string{"SendEmails", "PollInbox", "DispatchAlerts"}
	}
	if len(cfg.Worker.CriticalCapabilities) == 0 {
		cfg.Worker.CriticalCapabilities = []string{"email.send", "inbox.fetch", "alert.send"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Campaign.DefaultName == "" {
		cfg.Campaign.DefaultName = "Default Outreach"
	}
	if cfg.Campaign.DailyBatchSize == 0 {
		cfg.Campaign.DailyBatchSize = 50
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "resend"
	}
	if cfg.Email.ResendBaseURL == "" {
		cfg.Email.ResendBaseURL = "https://api.resend.com"
	}
	if cfg.Email.DailyCap == 0 {
		cfg.Email.DailyCap = 100
	}
	if cfg.Email.BatchCap == 0 {
		cfg.Email.BatchCap = 20
	}
	if cfg.Email.TimeoutSeconds == 0 {
		cfg.Email.TimeoutSeconds = 30
	}
	if cfg.Email.SESRegion == "" {
		cfg.Email.SESRegion = "us-east-1"
	}
	if cfg.IMAP.Port == 0 {
		cfg.IMAP.Port = 993
	}
	if cfg.IMAP.Mailbox == "" {
		cfg.IMAP.Mailbox = "INBOX"
	}
	if cfg.IMAP.PollIntervalMinutes == 0 {
		cfg.IMAP.PollIntervalMinutes = 5
	}
	if cfg.Decision.ReplyRateThreshold == 0 {
		cfg.Decision.ReplyRateThreshold = 0.01
	}
	if cfg.Decision.MinSendsToEvaluate == 0 {
		cfg.Decision.MinSendsToEvaluate = 50
	}
	if cfg.Nurture.NoReplyWindowHours == 0 {
		cfg.Nurture.NoReplyWindowHours = 72
	}
	if cfg.Nurture.DefaultSequence == "" {
		cfg.Nurture.DefaultSequence = "cold_outreach"
	}
	if cfg.Events.Region == "" {
		cfg.Events.Region = cfg.Email.SESRegion
	}
	if cfg.Journal.Region == "" {
		cfg.Journal.Region = cfg.Email.SESRegion
	}
	if cfg.Journal.S3Prefix == "" {
		cfg.Journal.S3Prefix = "cam/cycles"
	}
	if cfg.Ops.Addr == "" {
		cfg.Ops.Addr = ":8090"
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first. An empty path or a missing
// config file yields defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("AICMO_CAM_DEFAULT_CAMPAIGN_NAME", &cfg.Campaign.DefaultName)
	num("AICMO_CAM_DAILY_BATCH_SIZE", &cfg.Campaign.DailyBatchSize)

	str("RESEND_API_KEY", &cfg.Email.ResendAPIKey)
	str("RESEND_FROM_EMAIL", &cfg.Email.FromEmail)
	str("CAM_EMAIL_PROVIDER", &cfg.Email.Provider)
	num("CAM_EMAIL_DAILY_CAP", &cfg.Email.DailyCap)
	num("CAM_EMAIL_BATCH_CAP", &cfg.Email.BatchCap)
	flag("CAM_EMAIL_DRY_RUN", &cfg.Email.DryRun)
	flag("CAM_EMAIL_RETRY_FAILED", &cfg.Email.RetryFailed)
	str("CAM_EMAIL_ALLOWLIST_REGEX", &cfg.Email.AllowlistRegex)
	str("AWS_SES_REGION", &cfg.Email.SESRegion)
	str("AWS_SES_ACCESS_KEY", &cfg.Email.SESAccessKey)
	str("AWS_SES_SECRET_KEY", &cfg.Email.SESSecretKey)

	str("IMAP_SERVER", &cfg.IMAP.Server)
	num("IMAP_PORT", &cfg.IMAP.Port)
	str("IMAP_EMAIL", &cfg.IMAP.Email)
	str("IMAP_PASSWORD", &cfg.IMAP.Password)
	num("IMAP_POLL_INTERVAL_MINUTES", &cfg.IMAP.PollIntervalMinutes)

	flt("CAM_AUTO_PAUSE_REPLY_RATE_THRESHOLD", &cfg.Decision.ReplyRateThreshold)
	flag("CAM_AUTO_PAUSE_ENABLE", &cfg.Decision.AutoPauseEnabled)
	num("CAM_AUTO_PAUSE_MIN_SENDS_TO_EVALUATE", &cfg.Decision.MinSendsToEvaluate)

	num("AICMO_CAM_WORKER_INTERVAL_SECONDS", &cfg.Worker.IntervalSeconds)
	flag("AICMO_CAM_WORKER_ENABLED", &cfg.Worker.Enabled)
	str("AICMO_CAM_WORKER_ID", &cfg.Worker.ID)
	str("CAM_LOCK_BACKEND", &cfg.Worker.LockBackend)
	num("CAM_LOCK_TTL_SECONDS", &cfg.Worker.LockTTLSeconds)

	if v := os.Getenv("AICMO_CAM_ALERT_EMAILS"); v != "" {
		cfg.Alert.Emails = splitList(v)
	}

	str("DATABASE_URL", &cfg.Database.URL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("CAM_EVENTS_SQS_QUEUE_URL", &cfg.Events.SQSQueueURL)
	str("CAM_JOURNAL_S3_BUCKET", &cfg.Journal.S3Bucket)
	num("CAM_NO_REPLY_WINDOW_HOURS", &cfg.Nurture.NoReplyWindowHours)
	flag("CAM_ALLOW_REQUALIFICATION", &cfg.FollowUp.AllowRequalification)
	str("CAM_OPS_ADDR", &cfg.Ops.Addr)
	if v := os.Getenv("CAM_OPS_CORS_ORIGINS"); v != "" {
		cfg.Ops.CORSOrigins = splitList(v)
	}
	str("LOG_ENV", &cfg.Log.Env)
	str("LOG_LEVEL", &cfg.Log.Level)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports configuration problems. Errors make the worker refuse to
// start; warnings are logged and startup continues.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []error

	if c.Email.AllowlistRegex != "" {
		if _, rerr := regexp.Compile(c.Email.AllowlistRegex); rerr != nil {
			errs = append(errs, fmt.Errorf("email.allowlist_regex: %w", rerr))
		}
	}
	switch c.Email.Provider {
	case "resend", "ses":
	default:
		errs = append(errs, fmt.Errorf("email.provider: unknown provider %q", c.Email.Provider))
	}
	switch c.Worker.LockBackend {
	case "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("worker.lock_backend: unknown backend %q", c.Worker.LockBackend))
	}
	if c.Email.DailyCap < 0 || c.Email.BatchCap < 0 {
		errs = append(errs, errors.New("email caps must not be negative"))
	}
	if c.Decision.ReplyRateThreshold < 0 || c.Decision.ReplyRateThreshold > 1 {
		errs = append(errs, fmt.Errorf("decision.reply_rate_threshold: %v outside [0,1]", c.Decision.ReplyRateThreshold))
	}

	if c.Worker.LockTTLSeconds <= c.Worker.IntervalSeconds {
		warnings = append(warnings, fmt.Sprintf(
			"lock ttl (%ds) does not exceed worker interval (%ds); a slow cycle may let a second worker take over",
			c.Worker.LockTTLSeconds, c.Worker.IntervalSeconds))
	}
	if c.Email.BatchCap > c.Email.DailyCap {
		warnings = append(warnings, "email batch cap exceeds daily cap")
	}
	if c.Database.URL == "" {
		warnings = append(warnings, "DATABASE_URL not set")
	}

	return warnings, errors.Join(errs...)
}
