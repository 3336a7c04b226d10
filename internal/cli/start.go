package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mod-gobot/internal/app"
	"mod-gobot/internal/config"
)

func newStartCommand(cfg *config.Config, application *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the mod-gobot Telegram bot",
		Long:  `Start the bot and begin processing Telegram messages. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Telegram.Token == "" {
				return fmt.Errorf("telegram token not configured. Run 'mod-gobot config init' first")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Starting mod-gobot...")
			fmt.Fprintf(out, "   Config: %s\n", cfg.ConfigPath)
			fmt.Fprintf(out, "   Storage: %s\n", cfg.StoragePath)

			if err := application.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			return nil
		},
	}
}
