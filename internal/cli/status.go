package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/spf13/cobra"

	"mod-gobot/internal/bot"
	"mod-gobot/internal/config"
)

// GroupCounter counts tracked groups
type GroupCounter interface {
	CountGroups() (int, error)
}

func newStatusCommand(cfg *config.Config, store GroupCounter) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot status and configuration",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mod-gobot v%s\n\n", Version)

			fmt.Fprintln(out, "Telegram:")
			if cfg.Telegram.Token != "" {
				fmt.Fprintf(out, "  Bot Token: %s\n", maskToken(cfg.Telegram.Token))
			} else {
				fmt.Fprintln(out, "  Not configured")
			}
			fmt.Fprintf(out, "  Superusers: %d\n\n", len(cfg.Auth.Superusers))

			fmt.Fprintln(out, "Storage:")
			fmt.Fprintf(out, "  Path: %s\n", cfg.StoragePath)
			if n, err := store.CountGroups(); err == nil {
				fmt.Fprintf(out, "  Groups: %d\n", n)
			} else {
				fmt.Fprintf(out, "  Groups: unavailable (%v)\n", err)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Running bot:")
			if !cfg.API.Enabled {
				fmt.Fprintln(out, "  Unknown (enable the HTTP API to query it)")
				return
			}
			st, err := fetchStatus(cmd.Context(), fmt.Sprintf("http://127.0.0.1:%d", cfg.API.Port), cfg.API.APIKey)
			if err != nil {
				fmt.Fprintf(out, "  Not reachable: %v\n", err)
				return
			}
			printStatus(out, st)
		},
	}
}

// fetchStatus asks a running bot for its status over the HTTP API
func fetchStatus(ctx context.Context, baseURL, apiKey string) (*bot.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var st bot.Status
	if err := json.UnmarshalRead(resp.Body, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func printStatus(out io.Writer, st *bot.Status) {
	fmt.Fprintf(out, "  Username: @%s\n", st.Username)
	fmt.Fprintf(out, "  Up since: %s (%s)\n", st.StartedAt.Local().Format(time.DateTime), st.Uptime.Round(time.Second))
	fmt.Fprintf(out, "  Groups: %d, silenced: %d\n", st.Groups, st.Silenced)
	fmt.Fprintf(out, "  Pending commands: %d, elevated users: %d\n", st.Pending, st.Elevated)
}
