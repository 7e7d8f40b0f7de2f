package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"ratecatalog/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	AI        AIConfig        `mapstructure:"ai"`
	Trust     TrustConfig     `mapstructure:"trust"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs when the nightly sweep runs.
type SchedulerConfig struct {
	Cron            string        `mapstructure:"cron"`
	Timezone        string        `mapstructure:"timezone"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// SweepConfig controls the institution refresh loop.
type SweepConfig struct {
	TargetsFile   string        `mapstructure:"targets_file"`
	Delay         time.Duration `mapstructure:"delay"`
	Concurrency   int           `mapstructure:"concurrency"`
	RefreshPolicy string        `mapstructure:"refresh_policy"`
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`
}

// ScraperConfig configures the HTML rate-page scraper.
type ScraperConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AIConfig configures the OpenAI-compatible search and ranking collaborators.
type AIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the AI advisor.
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// TrustConfig holds the community auto-flag bounds.
type TrustConfig struct {
	CeilingAPY      float64 `mapstructure:"ceiling_apy"`
	OutlierMultiple float64 `mapstructure:"outlier_multiple"`
}

// RankingConfig bounds recommendation output.
type RankingConfig struct {
	CandidateLimit int `mapstructure:"candidate_limit"`
	TopN           int `mapstructure:"top_n"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	DispatchTimeout time.Duration  `mapstructure:"dispatch_timeout"`
	Channels        []string       `mapstructure:"channels"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
	Email           EmailConfig    `mapstructure:"email"`
}

// TelegramConfig describes the Telegram bot used for moderation pings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// EmailConfig describes the SMTP relay for moderation mail.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// MetricsConfig configures the ops HTTP listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRecords int `mapstructure:"max_records"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATECATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ratecatalog")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.cron", "0 3 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72617465))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("sweep.targets_file", "targets.yaml")
	v.SetDefault("sweep.delay", "2s")
	v.SetDefault("sweep.concurrency", 1)
	v.SetDefault("sweep.refresh_policy", "reset-trust")
	v.SetDefault("sweep.item_timeout", "60s")

	v.SetDefault("scraper.user_agent", "ratecatalog/1.0")
	v.SetDefault("scraper.request_timeout", "15s")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.request_timeout", "30s")
	v.SetDefault("ai.breaker.max_requests", 1)
	v.SetDefault("ai.breaker.interval", "60s")
	v.SetDefault("ai.breaker.timeout", "30s")
	v.SetDefault("ai.breaker.consecutive_failures", 3)

	v.SetDefault("trust.ceiling_apy", 15.0)
	v.SetDefault("trust.outlier_multiple", 2.0)

	v.SetDefault("ranking.candidate_limit", 20)
	v.SetDefault("ranking.top_n", 5)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.dispatch_timeout", "10s")
	v.SetDefault("alerting.channels", []string{"telegram", "email"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.port", 587)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", ":9102")

	v.SetDefault("export.max_records", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxRecords <= 0 {
		return fmt.Errorf("export.max_records must be greater than zero")
	}
	if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
		return fmt.Errorf("scheduler.cron is invalid: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone is invalid: %w", err)
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep.concurrency must be greater than zero")
	}
	if c.Sweep.Delay < 0 {
		return fmt.Errorf("sweep.delay cannot be negative")
	}
	switch c.Sweep.RefreshPolicy {
	case "preserve-trust", "reset-trust", "preserve", "reset":
	default:
		return fmt.Errorf("sweep.refresh_policy must be preserve-trust or reset-trust")
	}
	if c.Trust.CeilingAPY <= 0 {
		return fmt.Errorf("trust.ceiling_apy must be greater than zero")
	}
	if c.Trust.OutlierMultiple <= 1 {
		return fmt.Errorf("trust.outlier_multiple must be greater than one")
	}
	if c.Ranking.CandidateLimit <= 0 || c.Ranking.TopN <= 0 {
		return fmt.Errorf("ranking.candidate_limit and ranking.top_n must be greater than zero")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.enabled is set")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.Host == "" || c.Alerting.Email.From == "" {
			return fmt.Errorf("alerting.email.host and alerting.email.from are required")
		}
		if len(c.Alerting.Email.To) == 0 {
			return fmt.Errorf("alerting.email.to needs at least one recipient")
		}
	}
	return nil
}

// ResolveCandidateLimit returns either the CLI override or config default.
func (c *Config) ResolveCandidateLimit(override int) int {
	if override > 0 {
		return override
	}
	return c.Ranking.CandidateLimit
}

// ResolveMaxRecords returns either the CLI override or config default.
func (c *Config) ResolveMaxRecords(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRecords
}
