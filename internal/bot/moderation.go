package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/errorx"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/sanitize"
	"mod-gobot/internal/storage"
)

const warningTimeFormat = "2006-01-02 15:04:05"

func mention(u platform.User) string {
	return sanitize.Mention(u.Username, u.Name())
}

// moderatable returns the replied-to user after checking that they may be
// moderated in the target chat.
func (b *Bot) moderatable(ctx context.Context, req *bus.Request, action string) (platform.User, error) {
	user, _ := req.ReplyUser()
	if user.IsBot && user.Username == b.platform.Username() {
		return user, errorx.NewUserError(fmt.Sprintf("I won't %s myself.", action), nil)
	}

	role, err := b.platform.Role(ctx, req.Target.ID, user.ID)
	if err != nil {
		return user, fmt.Errorf("role of %d in %d: %w", user.ID, req.Target.ID, err)
	}
	if role.IsAdmin() {
		return user, errorx.NewUserError(fmt.Sprintf("I can't %s an admin of %s.", action, req.Target.DisplayName()), nil)
	}
	return user, nil
}

// noRights turns a missing bot permission into a readable reply.
func noRights(err error, chat platform.Chat, action string) error {
	if errors.Is(err, platform.ErrNoRights) {
		return errorx.NewUserError(fmt.Sprintf("I need admin rights in %s to %s.", chat.DisplayName(), action), err)
	}
	return err
}

func formatWarnings(ws []storage.Warning) string {
	var sb strings.Builder
	for i := len(ws) - 1; i >= 0; i-- {
		w := ws[i]
		reason := w.Reason
		if reason == "" {
			reason = "none given"
		}
		fmt.Fprintf(&sb, "\n[%s] warned by %s (reason: %s)", w.CreatedAt.UTC().Format(warningTimeFormat), w.WarnedByName, reason)
	}
	return sb.String()
}

func (b *Bot) handleWarn(ctx context.Context, req *bus.Request) error {
	user, _ := req.ReplyUser()
	sender := req.Event.Sender

	if _, err := b.store.AddWarning(storage.Warning{
		GroupID:      req.Target.ID,
		UserID:       user.ID,
		UserName:     user.Name(),
		Reason:       sanitize.UserText(req.Args),
		WarnedBy:     sender.ID,
		WarnedByName: mention(sender),
	}); err != nil {
		return err
	}

	ws, err := b.store.Warnings(req.Target.ID, user.ID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s, you just received a warning. Here are all warnings since you joined:\n%s",
		mention(user), formatWarnings(ws))
	if limit := b.config().Moderation.WarnLimit; limit > 0 && len(ws) >= limit {
		text += fmt.Sprintf("\n\nThat makes %d warnings. Admins may want to /ban.", len(ws))
	}
	return req.Announce(ctx, text)
}

func (b *Bot) handleWarnings(ctx context.Context, req *bus.Request) error {
	user, _ := req.ReplyUser()
	ws, err := b.store.Warnings(req.Target.ID, user.ID)
	if err != nil {
		return err
	}
	if len(ws) == 0 {
		return req.Replyf(ctx, "%s has no warnings in %s.", mention(user), req.Target.DisplayName())
	}
	return req.Replyf(ctx, "Warnings of %s in %s:\n%s", mention(user), req.Target.DisplayName(), formatWarnings(ws))
}

func (b *Bot) handleClearWarnings(ctx context.Context, req *bus.Request) error {
	user, _ := req.ReplyUser()
	n, err := b.store.ClearWarnings(req.Target.ID, user.ID)
	if err != nil {
		return err
	}
	return req.Replyf(ctx, "Cleared %d warnings of %s in %s.", n, mention(user), req.Target.DisplayName())
}

func (b *Bot) handleMute(ctx context.Context, req *bus.Request) error {
	d := b.config().Moderation.MuteDuration
	if arg := strings.TrimSpace(req.Args); arg != "" {
		parsed, err := time.ParseDuration(arg)
		if err != nil || parsed <= 0 {
			return errorx.NewUserError(fmt.Sprintf("%q is not a duration. Try 30m or 2h.", arg), err)
		}
		d = parsed
	}

	user, err := b.moderatable(ctx, req, "mute")
	if err != nil {
		return err
	}
	if err := b.platform.Restrict(ctx, req.Target.ID, user.ID, time.Now().Add(d)); err != nil {
		return noRights(err, req.Target, "mute people")
	}
	return req.Announce(ctx, fmt.Sprintf("%s has been muted for %s.", mention(user), d))
}

func (b *Bot) handleUnmute(ctx context.Context, req *bus.Request) error {
	user, _ := req.ReplyUser()
	if err := b.platform.Unrestrict(ctx, req.Target.ID, user.ID); err != nil {
		return noRights(err, req.Target, "unmute people")
	}
	return req.Announce(ctx, fmt.Sprintf("%s can speak again.", mention(user)))
}

func (b *Bot) handleKick(ctx context.Context, req *bus.Request) error {
	user, err := b.moderatable(ctx, req, "kick")
	if err != nil {
		return err
	}
	if err := b.platform.Kick(ctx, req.Target.ID, user.ID); err != nil {
		return noRights(err, req.Target, "kick people")
	}
	return req.Announce(ctx, fmt.Sprintf("%s has been kicked.", mention(user)))
}

func (b *Bot) handleBan(ctx context.Context, req *bus.Request) error {
	user, err := b.moderatable(ctx, req, "ban")
	if err != nil {
		return err
	}
	if err := b.platform.Ban(ctx, req.Target.ID, user.ID); err != nil {
		return noRights(err, req.Target, "ban people")
	}
	return req.Announce(ctx, fmt.Sprintf("%s has been banned.", mention(user)))
}

func (b *Bot) handleSilence(ctx context.Context, req *bus.Request) error {
	if !b.silencer.Set(req.Target.ID, true) {
		return req.Replyf(ctx, "%s is already silenced.", req.Target.DisplayName())
	}
	return req.Replyf(ctx, "I will ignore commands from non-admins in %s.", req.Target.DisplayName())
}

func (b *Bot) handleUnsilence(ctx context.Context, req *bus.Request) error {
	if !b.silencer.Set(req.Target.ID, false) {
		return req.Replyf(ctx, "%s is not silenced.", req.Target.DisplayName())
	}
	return req.Replyf(ctx, "%s is no longer silenced.", req.Target.DisplayName())
}

func (b *Bot) handleAuditLog(ctx context.Context, req *bus.Request) error {
	entries, err := b.store.AuditLog(req.Target.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return req.Replyf(ctx, "No admin actions recorded in %s yet.", req.Target.DisplayName())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent admin actions in %s:\n", req.Target.DisplayName())
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n[%s] %s: %s", e.Timestamp.UTC().Format(warningTimeFormat), e.UserName, e.Command)
		if e.InReplyToName != "" {
			fmt.Fprintf(&sb, " (on %s)", e.InReplyToName)
		}
		if e.Synthetic {
			sb.WriteString(" (remote)")
		}
	}
	return req.Reply(ctx, sb.String())
}

// handleSetControlChannel links the resolved group to the chat the
// command was typed in.
func (b *Bot) handleSetControlChannel(ctx context.Context, req *bus.Request) error {
	origin := req.Event.Provenance.OriginChatID
	if !req.Event.Provenance.Synthetic || origin == 0 {
		return errorx.NewUserError("Pick the group to control from the buttons.", nil)
	}
	if req.Event.Provenance.OriginChatType == platform.ChatPrivate {
		return errorx.NewUserError("A private chat cannot be a control channel. Use /setcontrolchannel in the chat your admins share.", nil)
	}
	if origin == req.Target.ID {
		return errorx.NewUserError("A group cannot control itself.", nil)
	}

	if err := b.store.TrackGroup(req.Target.ID, req.Target.Title); err != nil {
		return err
	}
	if err := b.store.SetControlChannel(req.Target.ID, origin); err != nil {
		return err
	}
	return req.Replyf(ctx, "%s is now controlled from this chat.", req.Target.DisplayName())
}

func (b *Bot) handleUnsetControlChannel(ctx context.Context, req *bus.Request) error {
	g, err := b.group(req.Target)
	if err != nil {
		return err
	}
	if g.ControlChannelID == 0 {
		return req.Replyf(ctx, "%s has no control channel.", req.Target.DisplayName())
	}
	if err := b.store.SetControlChannel(req.Target.ID, 0); err != nil {
		return err
	}
	return req.Replyf(ctx, "%s is no longer linked to a control channel.", req.Target.DisplayName())
}
