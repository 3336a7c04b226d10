package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mod-gobot/internal/config"
	"mod-gobot/internal/cron"
	"mod-gobot/internal/logger"
)

const defaultConfig = `# mod-gobot configuration
# Get your Telegram bot token from @BotFather

telegram:
  token: ""            # Your Telegram bot token
  poll_timeout: 10s

auth:
  superusers: []       # Telegram user IDs allowed to /sudo
  sudo_duration: 5m

moderation:
  mute_duration: 1h    # Default for /mute without a duration
  warn_limit: 3        # Warnings before the bot suggests a ban

ratelimit:
  max_requests: 20     # Commands per chat per window
  window: 1m

retry:
  attempts: 3          # Tries for transient Telegram errors
  backoff: 500ms

maintenance:
  enabled: true
  sweep_schedule: "0 0 */6 * * *"   # Forget groups the bot was removed from

api:
  enabled: false
  port: 8080
  api_key: ""

storage_path: "~/.mod-gobot/mod-gobot.db"
log_level: "info"      # debug, info, warn, error
redact: []             # Extra secrets to mask in logs and error reports
`

func newConfigCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Initialize and manage mod-gobot configuration.`,
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(cfg))
	cmd.AddCommand(newConfigSetCommand(cfg))

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := config.Dir()
			if err != nil {
				return err
			}
			configPath := filepath.Join(configDir, "config.yaml")
			if err := writeDefaultConfig(configPath); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created config at %s\n", configPath)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "1. Get a bot token from @BotFather on Telegram")
			fmt.Fprintln(out, "2. Set it: mod-gobot config set telegram.token <token>")
			fmt.Fprintln(out, "3. Add yourself as superuser: mod-gobot config set auth.superusers <your user id>")
			fmt.Fprintln(out, "4. Start the bot: mod-gobot start")
			return nil
		},
	}
}

func writeDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func newConfigShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", cfg.ConfigPath)
			fmt.Fprintf(out, "\nTelegram:\n")
			fmt.Fprintf(out, "  Token: %s\n", maskToken(cfg.Telegram.Token))
			fmt.Fprintf(out, "  Poll timeout: %s\n", cfg.Telegram.PollTimeout)
			fmt.Fprintf(out, "\nAuth:\n")
			fmt.Fprintf(out, "  Superusers: %v\n", cfg.Auth.Superusers)
			fmt.Fprintf(out, "  Sudo duration: %s\n", cfg.Auth.SudoDuration)
			fmt.Fprintf(out, "\nModeration:\n")
			fmt.Fprintf(out, "  Mute duration: %s\n", cfg.Moderation.MuteDuration)
			fmt.Fprintf(out, "  Warn limit: %d\n", cfg.Moderation.WarnLimit)
			fmt.Fprintf(out, "\nRate limit: %d commands per %s\n", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
			fmt.Fprintf(out, "Retry: %d attempts, %s backoff\n", cfg.Retry.Attempts, cfg.Retry.Backoff)
			fmt.Fprintf(out, "\nMaintenance: enabled=%t, sweep %q\n", cfg.Maintenance.Enabled, cfg.Maintenance.SweepSchedule)
			fmt.Fprintf(out, "\nAPI:\n")
			fmt.Fprintf(out, "  Enabled: %t\n", cfg.API.Enabled)
			fmt.Fprintf(out, "  Port: %d\n", cfg.API.Port)
			fmt.Fprintf(out, "  API Key: %s\n", maskToken(cfg.API.APIKey))
			fmt.Fprintf(out, "\nStorage:\n")
			fmt.Fprintf(out, "  Path: %s\n", cfg.StoragePath)
			fmt.Fprintf(out, "\nLog level: %s\n", cfg.LogLevel)
		},
	}
}

func newConfigSetCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := setConfigValue(cfg, key, args[1]); err != nil {
				return err
			}

			if cfg.ConfigPath == "" {
				configDir, err := config.Dir()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(configDir, 0755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
				cfg.ConfigPath = filepath.Join(configDir, "config.yaml")
			}

			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)
			return nil
		},
	}
}

// setConfigValue parses value for key and stores it in cfg
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch key {
	case "telegram.token":
		cfg.Telegram.Token = value
	case "telegram.poll_timeout":
		cfg.Telegram.PollTimeout, err = parsePositiveDuration(value)
	case "auth.superusers":
		cfg.Auth.Superusers, err = parseIDList(value)
	case "auth.sudo_duration":
		cfg.Auth.SudoDuration, err = parsePositiveDuration(value)
	case "moderation.mute_duration":
		cfg.Moderation.MuteDuration, err = parsePositiveDuration(value)
	case "moderation.warn_limit":
		cfg.Moderation.WarnLimit, err = strconv.Atoi(value)
	case "ratelimit.max_requests":
		cfg.RateLimit.MaxRequests, err = strconv.Atoi(value)
	case "ratelimit.window":
		cfg.RateLimit.Window, err = parsePositiveDuration(value)
	case "retry.attempts":
		cfg.Retry.Attempts, err = strconv.Atoi(value)
	case "retry.backoff":
		cfg.Retry.Backoff, err = time.ParseDuration(value)
	case "maintenance.enabled":
		cfg.Maintenance.Enabled, err = strconv.ParseBool(value)
	case "maintenance.sweep_schedule":
		if err = cron.ValidateExpression(value); err == nil {
			cfg.Maintenance.SweepSchedule = value
		}
	case "api.enabled":
		cfg.API.Enabled, err = strconv.ParseBool(value)
	case "api.port":
		cfg.API.Port, err = strconv.Atoi(value)
	case "api.api_key":
		cfg.API.APIKey = value
	case "storage_path":
		cfg.StoragePath = value
	case "log_level":
		lvl := logger.ParseLevel(value)
		if lvl == logger.LevelInfo && !strings.EqualFold(strings.TrimSpace(value), "info") {
			err = fmt.Errorf("unknown level %q", value)
			break
		}
		cfg.LogLevel = lvl.String()
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

func parseIDList(s string) ([]int64, error) {
	ids := []int64{}
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a user id", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
