package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Pipedrive PipedriveConfig `yaml:"pipedrive" mapstructure:"pipedrive"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Briefing  BriefingConfig  `yaml:"briefing" mapstructure:"briefing"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PipedriveConfig holds Pipedrive API settings. Domain is the company
// subdomain used for deal links; when empty the domain reported by the API
// is used.
type PipedriveConfig struct {
	APIToken     string  `yaml:"api_token" mapstructure:"api_token"`
	Domain       string  `yaml:"domain" mapstructure:"domain"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// GoogleConfig holds the OAuth client and the stored token used for Gmail.
type GoogleConfig struct {
	ClientID         string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret     string  `yaml:"client_secret" mapstructure:"client_secret"`
	TokenPath        string  `yaml:"token_path" mapstructure:"token_path"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	PromptPath string `yaml:"prompt_path" mapstructure:"prompt_path"`
}

// BriefingConfig bounds one briefing run.
type BriefingConfig struct {
	Limit          int `yaml:"limit" mapstructure:"limit"`
	EmailDays      int `yaml:"email_days" mapstructure:"email_days"`
	MaxEmails      int `yaml:"max_emails" mapstructure:"max_emails"`
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxContacts    int `yaml:"max_contacts" mapstructure:"max_contacts"`
	ActivityLimit  int `yaml:"activity_limit" mapstructure:"activity_limit"`
	RunTimeoutSecs int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// StoreConfig configures the run history backend. Driver is one of none,
// sqlite or postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the task server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// NotifyConfig configures async result delivery.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures backoff for the CRM and mailbox clients.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRIEFING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pipedrive.api_token", "")
	v.SetDefault("pipedrive.domain", "")
	v.SetDefault("pipedrive.base_url", "https://api.pipedrive.com/v1")
	v.SetDefault("pipedrive.rate_limit_rps", 8)
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.token_path", "token.json")
	v.SetDefault("google.rate_limit_rps", 10)
	v.SetDefault("google.breaker_threshold", 5)
	v.SetDefault("google.breaker_reset_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.prompt_path", "")
	v.SetDefault("briefing.limit", 10)
	v.SetDefault("briefing.email_days", 90)
	v.SetDefault("briefing.max_emails", 10)
	v.SetDefault("briefing.concurrency", 5)
	v.SetDefault("briefing.max_contacts", 5)
	v.SetDefault("briefing.activity_limit", 10)
	v.SetDefault("briefing.run_timeout_secs", 300)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout_secs", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by a command mode: "brief",
// "serve" or "history".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "brief", "serve":
		errs = append(errs, c.validateBriefing()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore(false)...)
	case "history":
		errs = append(errs, c.validateStore(true)...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateBriefing() []string {
	var errs []string
	if c.Pipedrive.APIToken == "" {
		errs = append(errs, "pipedrive.api_token is required")
	}
	if c.Google.TokenPath == "" {
		errs = append(errs, "google.token_path is required")
	}
	if c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required")
	}
	if c.Anthropic.Model == "" {
		errs = append(errs, "anthropic.model is required")
	}

	b := c.Briefing
	if b.Concurrency < 1 || b.Concurrency > 50 {
		errs = append(errs, "briefing.concurrency must be between 1 and 50")
	}
	if b.Limit < 1 {
		errs = append(errs, "briefing.limit must be >= 1")
	}
	if b.EmailDays < 0 {
		errs = append(errs, "briefing.email_days must be >= 0")
	}
	if b.MaxEmails < 0 {
		errs = append(errs, "briefing.max_emails must be >= 0")
	}
	if b.MaxContacts < 1 {
		errs = append(errs, "briefing.max_contacts must be >= 1")
	}
	return errs
}

func (c *Config) validateStore(required bool) []string {
	switch c.Store.Driver {
	case "", "none":
		if required {
			return []string{"store.driver must be sqlite or postgres"}
		}
		return nil
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
		return nil
	default:
		return []string{"store.driver must be one of none, sqlite, postgres"}
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
