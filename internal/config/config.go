package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ConfigPath  string            `mapstructure:"-"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Moderation  ModerationConfig  `mapstructure:"moderation"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	API         APIConfig         `mapstructure:"api"`
	StoragePath string            `mapstructure:"storage_path"`
	LogLevel    string            `mapstructure:"log_level"`
	Redact      []string          `mapstructure:"redact"` // extra literal secrets masked in logs and error reports
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// AuthConfig holds elevated-privilege configuration
type AuthConfig struct {
	Superusers   []int64       `mapstructure:"superusers"`    // Telegram user IDs allowed to /sudo
	SudoDuration time.Duration `mapstructure:"sudo_duration"` // How long /sudo lasts
}

// ModerationConfig holds moderation defaults
type ModerationConfig struct {
	MuteDuration time.Duration `mapstructure:"mute_duration"`
	WarnLimit    int           `mapstructure:"warn_limit"` // Warnings before the bot suggests a ban
}

// RateLimitConfig bounds commands per chat
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// RetryConfig bounds handler retries on transient platform errors
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// MaintenanceConfig controls the background scheduler
type MaintenanceConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SweepSchedule string `mapstructure:"sweep_schedule"` // cron expression with seconds
}

// APIConfig holds HTTP API configuration
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"` // Enable HTTP API server
	Port    int    `mapstructure:"port"`    // API server port
	APIKey  string `mapstructure:"api_key"` // Required API key for authentication
}

// Dir returns the directory holding config, database and .env.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mod-gobot"), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("storage_path", "~/.mod-gobot/mod-gobot.db")
	v.SetDefault("telegram.poll_timeout", 10*time.Second)
	v.SetDefault("auth.superusers", []int64{})
	v.SetDefault("auth.sudo_duration", 5*time.Minute)
	v.SetDefault("moderation.mute_duration", time.Hour)
	v.SetDefault("moderation.warn_limit", 3)
	v.SetDefault("ratelimit.max_requests", 20)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.backoff", 500*time.Millisecond)
	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.sweep_schedule", "0 0 */6 * * *")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.api_key", "")
	v.SetDefault("redact", []string{})

	// Environment variable prefix
	v.SetEnvPrefix("MODGOBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadDotEnv reads .env from the working directory and the config
// directory. Existing environment variables win.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func finish(v *viper.Viper, configPath string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	cfg.StoragePath = expandPath(cfg.StoragePath)
	cfg.ConfigPath = configPath
	return &cfg, nil
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	loadDotEnv(configDir)

	v := newViper()
	configFile := filepath.Join(configDir, "config")

	if _, err := os.Stat(configFile + ".yaml"); err == nil {
		v.SetConfigFile(configFile + ".yaml")
	} else if _, err := os.Stat(configFile + ".yml"); err == nil {
		v.SetConfigFile(configFile + ".yml")
	} else if _, err := os.Stat(configFile + ".json"); err == nil {
		v.SetConfigFile(configFile + ".json")
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return finish(v, v.ConfigFileUsed())
}

// LoadFrom reads configuration from a specific file path
func LoadFrom(configPath string) (*Config, error) {
	loadDotEnv(filepath.Dir(configPath))

	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return finish(v, configPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	if c.StoragePath == "" {
		return fmt.Errorf("storage_path is required")
	}

	if c.Auth.SudoDuration <= 0 {
		return fmt.Errorf("auth.sudo_duration must be positive")
	}

	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("ratelimit.max_requests must not be negative")
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}

	if c.API.Enabled && c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required when api.enabled is true")
	}

	return nil
}

// IsSuperuser reports whether userID may use superuser commands.
func (c *Config) IsSuperuser(userID int64) bool {
	for _, id := range c.Auth.Superusers {
		if id == userID {
			return true
		}
	}
	return false
}

// Secrets returns every value that must never appear in logs or chat.
func (c *Config) Secrets() []string {
	secrets := []string{c.Telegram.Token, c.API.APIKey}
	return append(secrets, c.Redact...)
}

// Save writes the current configuration to file
func (c *Config) Save() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("config path not set")
	}

	v := viper.New()
	v.SetConfigFile(c.ConfigPath)

	v.Set("telegram.token", c.Telegram.Token)
	v.Set("telegram.poll_timeout", c.Telegram.PollTimeout.String())
	v.Set("auth.superusers", c.Auth.Superusers)
	v.Set("auth.sudo_duration", c.Auth.SudoDuration.String())
	v.Set("moderation.mute_duration", c.Moderation.MuteDuration.String())
	v.Set("moderation.warn_limit", c.Moderation.WarnLimit)
	v.Set("ratelimit.max_requests", c.RateLimit.MaxRequests)
	v.Set("ratelimit.window", c.RateLimit.Window.String())
	v.Set("retry.attempts", c.Retry.Attempts)
	v.Set("retry.backoff", c.Retry.Backoff.String())
	v.Set("maintenance.enabled", c.Maintenance.Enabled)
	v.Set("maintenance.sweep_schedule", c.Maintenance.SweepSchedule)
	v.Set("api.enabled", c.API.Enabled)
	v.Set("api.port", c.API.Port)
	v.Set("api.api_key", c.API.APIKey)
	v.Set("storage_path", c.StoragePath)
	v.Set("log_level", c.LogLevel)
	v.Set("redact", c.Redact)

	return v.WriteConfig()
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
