package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/errorx"
)

// registerCommands fills the registry with every bot command
func (b *Bot) registerCommands() {
	commands := []bus.Command{
		{Name: "start", Description: "Start the bot", Hidden: true, Handler: b.handleStart},
		{Name: "help", Description: "Show available commands", Handler: b.handleHelp},
		{Name: "ping", Description: "Check that the bot is alive", Handler: b.handlePing},

		{Name: "rules", Description: "Send the group rules privately", Scope: bus.ScopeGroup, Handler: b.handleRules},
		{Name: "setrules", Usage: "[text]", Description: "Set or clear the rules", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleSetRules},
		{Name: "description", Description: "Send the group description privately", Scope: bus.ScopeGroup, Handler: b.handleDescription},
		{Name: "setdescription", Usage: "[text]", Description: "Set or reset the description", Scope: bus.ScopeGroup, Permission: bus.PermCreator, Audit: true, Handler: b.handleSetDescription},
		{Name: "setwelcome", Usage: "[text]", Description: "Set or reset the welcome message", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleSetWelcome},
		{Name: "togglewelcome", Usage: "[true|false]", Description: "Turn the welcome message on or off", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleToggleWelcome},
		{Name: "relatedchats", Description: "List related chats", Scope: bus.ScopeGroup, Handler: b.handleRelatedChats},
		{Name: "addrelatedchat", Usage: "[chat id]", Description: "Link a related chat", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleAddRelatedChat},
		{Name: "removerelatedchat", Usage: "<chat id>", Description: "Unlink a related chat", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleRemoveRelatedChat},
		{Name: "invitelink", Description: "Show the invite link", Scope: bus.ScopeGroup, Handler: b.handleInviteLink},
		{Name: "revokeinvitelink", Description: "Replace the invite link", Scope: bus.ScopeGroup, Permission: bus.PermCreator, Dangerous: true, Audit: true, Handler: b.handleRevokeInviteLink},
		{Name: "say", Usage: "<text>", Description: "Post a message as the bot", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleSay},

		{Name: "warn", Usage: "[reason]", Description: "Warn the author of the replied message", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Audit: true, Handler: b.handleWarn},
		{Name: "warnings", Description: "List warnings of the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Handler: b.handleWarnings},
		{Name: "clearwarnings", Description: "Clear warnings of the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Dangerous: true, Audit: true, Handler: b.handleClearWarnings},
		{Name: "mute", Usage: "[duration]", Description: "Mute the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Audit: true, Handler: b.handleMute},
		{Name: "unmute", Description: "Unmute the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Audit: true, Handler: b.handleUnmute},
		{Name: "kick", Description: "Kick the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Dangerous: true, Audit: true, Handler: b.handleKick},
		{Name: "ban", Description: "Ban the replied user", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, NeedsReply: true, Dangerous: true, Audit: true, Handler: b.handleBan},
		{Name: "silence", Description: "Ignore commands from non-admins", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleSilence},
		{Name: "unsilence", Description: "Accept commands from everyone again", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Audit: true, Handler: b.handleUnsilence},
		{Name: "auditlog", Description: "Show recent admin actions", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Handler: b.handleAuditLog},

		{Name: "setcontrolchannel", Description: "Control a group from this chat", Scope: bus.ScopeResolve, Permission: bus.PermAdmin, Audit: true, Handler: b.handleSetControlChannel},
		{Name: "unsetcontrolchannel", Description: "Unlink the control channel", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Dangerous: true, Audit: true, Handler: b.handleUnsetControlChannel},

		{Name: "sudo", Description: "Elevate privileges for a while", Permission: bus.PermSuperuser, Hidden: true, Handler: b.handleSudo},
		{Name: "status", Description: "Show bot status", Permission: bus.PermSuperuser, Hidden: true, Handler: b.handleStatus},
		{Name: "reload", Description: "Reload configuration", Permission: bus.PermSuperuser, Hidden: true, Handler: b.handleReload},
	}

	for _, cmd := range commands {
		b.registry.MustRegister(cmd)
	}
}

// rulesLink is the deep link that makes Telegram open a private chat and
// send "/start rules_<id>".
func (b *Bot) rulesLink(groupID int64) string {
	return fmt.Sprintf("https://telegram.me/%s?start=rules_%d", b.platform.Username(), groupID)
}

func (b *Bot) handleStart(ctx context.Context, req *bus.Request) error {
	payload, ok := strings.CutPrefix(strings.TrimSpace(req.Args), "rules_")
	if !ok {
		return req.Reply(ctx, "Hi! I help moderate groups. Add me to a group as an admin, then send /help to see what I can do.")
	}

	groupID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return errorx.NewUserError("That link is broken, please ask for a new one.", err)
	}
	chat, err := b.platform.Chat(ctx, groupID)
	if err != nil {
		return fmt.Errorf("fetch chat %d: %w", groupID, err)
	}
	return b.sendRules(ctx, req, chat)
}

func (b *Bot) handleHelp(ctx context.Context, req *bus.Request) error {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range b.registry.Commands() {
		if cmd.Hidden {
			continue
		}
		sb.WriteString("\n/" + cmd.Name)
		if cmd.Usage != "" {
			sb.WriteString(" " + cmd.Usage)
		}
		sb.WriteString(" - " + cmd.Description)
	}
	sb.WriteString("\n\nGroup commands sent in a private chat ask which group they are meant for.")
	return req.Reply(ctx, sb.String())
}

func (b *Bot) handlePing(ctx context.Context, req *bus.Request) error {
	text := "Pong."
	switch n := b.roll(100); {
	case n >= 95:
		text = "Damn, I missed!"
	case n >= 90:
		text = "Ha! I win."
	}
	return req.Reply(ctx, text)
}

func (b *Bot) handleSudo(ctx context.Context, req *bus.Request) error {
	until, err := b.elevation.Grant(req.Event.Sender.ID)
	if err != nil {
		return err
	}
	return req.Replyf(ctx, "Elevated privileges granted until %s UTC.", until.UTC().Format(time.TimeOnly))
}

func (b *Bot) handleReload(ctx context.Context, req *bus.Request) error {
	b.mu.RLock()
	watcher := b.configWatcher
	b.mu.RUnlock()

	if watcher == nil {
		return req.Reply(ctx, "Config hot-reload is not enabled.")
	}
	if err := watcher.TriggerReload(); err != nil {
		return errorx.NewUserError(fmt.Sprintf("Failed to reload config: %s", b.redactor.Redact(err.Error())), err)
	}
	return req.Reply(ctx, "Configuration reloaded.")
}
