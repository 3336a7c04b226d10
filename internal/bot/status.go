package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/logger"
)

// Status is a snapshot of the bot's runtime state.
type Status struct {
	Username  string        `json:"username"`
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime,format:units"`
	Groups    int           `json:"groups"`
	Pending   int           `json:"pending_commands"`
	Elevated  int           `json:"elevated_users"`
	Silenced  int           `json:"silenced_groups"`
	Commands  int           `json:"commands"`
}

// Status reports counters for /status and the HTTP API.
func (b *Bot) Status() Status {
	groups, err := b.store.CountGroups()
	if err != nil {
		logger.Warnf("Bot: failed to count groups: %v", err)
	}
	return Status{
		Username:  b.platform.Username(),
		StartedAt: b.startedAt,
		Uptime:    time.Since(b.startedAt),
		Groups:    groups,
		Pending:   b.cache.Len(),
		Elevated:  b.elevation.Active(),
		Silenced:  b.silencer.Len(),
		Commands:  len(b.registry.Commands()),
	}
}

// handleStatus shows runtime status
func (b *Bot) handleStatus(ctx context.Context, req *bus.Request) error {
	st := b.Status()

	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s\n", st.Username)
	fmt.Fprintf(&sb, "Groups: %d · Silenced: %d\n", st.Groups, st.Silenced)
	fmt.Fprintf(&sb, "Pending commands: %d · Elevated users: %d\n", st.Pending, st.Elevated)
	fmt.Fprintf(&sb, "Commands: %d\n", st.Commands)
	fmt.Fprintf(&sb, "\nRunning for %s", formatDuration(st.Uptime))
	return req.Reply(ctx, sb.String())
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
