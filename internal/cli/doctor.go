package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mod-gobot/internal/config"
	"mod-gobot/internal/cron"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type checkResult struct {
	name     string
	passed   bool
	required bool
	message  string
}

// Pinger checks that storage answers
type Pinger interface {
	Ping() error
}

func newDoctorCommand(cfg *config.Config, store Pinger) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics to check system health",
		Long:  `Verify that the configuration and storage are properly set up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "mod-gobot diagnostics")
			fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Fprintln(out)

			hasFailures := false
			for _, result := range runChecks(cfg, store) {
				printResult(out, result)
				if result.required && !result.passed {
					hasFailures = true
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			if hasFailures {
				fmt.Fprintf(out, "%s✗ Some required checks failed%s\n", colorRed, colorReset)
				return fmt.Errorf("diagnostics failed")
			}

			fmt.Fprintf(out, "%s✓ All required checks passed%s\n", colorGreen, colorReset)
			return nil
		},
	}
}

func runChecks(cfg *config.Config, store Pinger) []checkResult {
	return []checkResult{
		checkConfigFile(cfg),
		checkTelegramToken(cfg),
		checkSuperusers(cfg),
		checkStoragePath(cfg),
		checkStorage(store),
		checkSweepSchedule(cfg),
		checkAPI(cfg),
	}
}

func printResult(out io.Writer, result checkResult) {
	var symbol, color, typeLabel string

	if result.passed {
		symbol = "✓"
		color = colorGreen
	} else {
		symbol = "✗"
		if result.required {
			color = colorRed
		} else {
			color = colorYellow
		}
	}

	if !result.required {
		typeLabel = fmt.Sprintf(" %s[optional]%s", colorCyan, colorReset)
	}

	fmt.Fprintf(out, "%s%s%s %s%s", color, symbol, colorReset, result.name, typeLabel)

	if result.message != "" {
		fmt.Fprintf(out, "\n  %s%s%s", color, result.message, colorReset)
	}

	fmt.Fprintln(out)
}

func checkConfigFile(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "Config file exists",
		required: true,
	}

	if cfg.ConfigPath == "" {
		result.message = "No config file found. Run 'mod-gobot config init' to create one."
		return result
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if os.IsNotExist(err) {
		result.message = fmt.Sprintf("Config file not found: %s", cfg.ConfigPath)
		return result
	}
	if err != nil {
		result.message = fmt.Sprintf("Failed to read config file: %v", err)
		return result
	}

	// viper also reads JSON; only YAML is checked here
	if ext := strings.ToLower(filepath.Ext(cfg.ConfigPath)); ext == ".yaml" || ext == ".yml" {
		var yamlData map[string]interface{}
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			result.message = fmt.Sprintf("Invalid YAML syntax: %v", err)
			return result
		}
	}

	result.passed = true
	result.message = fmt.Sprintf("Found: %s", cfg.ConfigPath)
	return result
}

func checkTelegramToken(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "Telegram bot token",
		required: true,
	}

	token := cfg.Telegram.Token
	if token == "" {
		result.message = "Not set. Get a token from @BotFather and run: mod-gobot config set telegram.token <token>"
		return result
	}

	// Tokens look like 123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11
	id, secret, ok := strings.Cut(token, ":")
	if !ok || id == "" || len(secret) < 30 {
		result.message = "Token appears invalid (expected <bot id>:<secret>)"
		return result
	}

	result.passed = true
	result.message = "Set"
	return result
}

func checkSuperusers(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "Superusers",
		required: false,
	}

	if len(cfg.Auth.Superusers) == 0 {
		result.message = "None configured. /sudo, /status and /reload will be unavailable."
		return result
	}

	result.passed = true
	result.message = fmt.Sprintf("%d configured, sudo lasts %s", len(cfg.Auth.Superusers), cfg.Auth.SudoDuration)
	return result
}

func checkStoragePath(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "Storage path",
		required: true,
	}

	if cfg.StoragePath == "" {
		result.message = "Storage path not configured"
		return result
	}

	dir := filepath.Dir(cfg.StoragePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			result.message = fmt.Sprintf("Directory doesn't exist and cannot be created: %s", dir)
			return result
		}
		result.passed = true
		result.message = fmt.Sprintf("Created directory: %s", dir)
		return result
	}

	testFile := filepath.Join(dir, ".mod-gobot-write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		result.message = fmt.Sprintf("Directory not writable: %s", dir)
		return result
	}
	os.Remove(testFile)

	result.passed = true
	result.message = fmt.Sprintf("Exists and writable: %s", dir)
	return result
}

func checkStorage(store Pinger) checkResult {
	result := checkResult{
		name:     "Database",
		required: true,
	}

	if store == nil {
		result.message = "Not opened"
		return result
	}
	if err := store.Ping(); err != nil {
		result.message = fmt.Sprintf("Not answering: %v", err)
		return result
	}

	result.passed = true
	result.message = "Open"
	return result
}

func checkSweepSchedule(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "Maintenance schedule",
		required: true,
	}

	if !cfg.Maintenance.Enabled {
		result.passed = true
		result.message = "Disabled"
		return result
	}
	if err := cron.ValidateExpression(cfg.Maintenance.SweepSchedule); err != nil {
		result.message = err.Error()
		return result
	}

	result.passed = true
	result.message = fmt.Sprintf("Sweep: %s", cfg.Maintenance.SweepSchedule)
	return result
}

func checkAPI(cfg *config.Config) checkResult {
	result := checkResult{
		name:     "HTTP API",
		required: false,
	}

	if !cfg.API.Enabled {
		result.message = "Disabled"
		return result
	}
	if cfg.API.APIKey == "" {
		result.required = true
		result.message = "Enabled without api.api_key"
		return result
	}

	result.passed = true
	result.message = fmt.Sprintf("Listening on port %d", cfg.API.Port)
	return result
}
