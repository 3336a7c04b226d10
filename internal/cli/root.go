package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mod-gobot/internal/app"
	"mod-gobot/internal/config"
	"mod-gobot/internal/storage"
)

// Version is the release printed by "mod-gobot version"
const Version = "0.1.0"

// NewRootCommand builds the mod-gobot command tree
func NewRootCommand(cfg *config.Config, store *storage.Store, application *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mod-gobot",
		Short: "mod-gobot - Telegram group moderation bot",
		Long: `mod-gobot - Telegram group moderation bot

Keeps rules, welcome messages and warnings for your groups, and lets
admins run group commands from a private chat or a control channel.`,

		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCommand(cfg, application))
	root.AddCommand(newConfigCommand(cfg))
	root.AddCommand(newStatusCommand(cfg, store))
	root.AddCommand(newGroupsCommand(store))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newDoctorCommand(cfg, store))
	root.AddCommand(newDaemonCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mod-gobot v%s (go)\n", Version)
		},
	}
}
