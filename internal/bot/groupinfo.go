package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/routing"
	"mod-gobot/internal/sanitize"
	"mod-gobot/internal/storage"
)

// group loads the stored settings of a chat, or defaults when the chat
// has never been stored.
func (b *Bot) group(chat platform.Chat) (*storage.Group, error) {
	g, err := b.store.GetGroup(chat.ID)
	if errors.Is(err, storage.ErrGroupNotFound) {
		return &storage.Group{ID: chat.ID, Title: chat.Title, WelcomeEnabled: true}, nil
	}
	return g, err
}

// description prefers the stored description over the one set in Telegram.
func (b *Bot) description(ctx context.Context, chatID int64, g *storage.Group) string {
	if g.Description != "" {
		return g.Description
	}
	chat, err := b.platform.Chat(ctx, chatID)
	if err != nil {
		logger.Debugf("Bot: no live description for %d: %v", chatID, err)
		return ""
	}
	return chat.Description
}

// listMods returns the human admins of a chat, owner first.
func (b *Bot) listMods(ctx context.Context, chatID int64) ([]string, error) {
	admins, err := b.platform.Admins(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var owner string
	var mods []string
	for _, a := range admins {
		if a.User.IsBot {
			continue
		}
		name := sanitize.Mention(a.User.Username, a.User.Name())
		if a.Role == platform.RoleCreator {
			owner = name
			continue
		}
		mods = append(mods, name)
	}
	sort.Strings(mods)
	if owner != "" {
		mods = append([]string{owner + " (owner)"}, mods...)
	}
	return mods, nil
}

// notifyCreator messages the chat's creator privately and reports whether
// the message was delivered.
func (b *Bot) notifyCreator(ctx context.Context, chatID int64, text string) bool {
	admins, err := b.platform.Admins(ctx, chatID)
	if err != nil {
		logger.Debugf("Bot: admins of %d unavailable: %v", chatID, err)
		return false
	}
	creator, ok := platform.Creator(admins)
	if !ok {
		return false
	}
	if _, err := b.platform.Send(ctx, creator.ID, text, nil); err != nil {
		logger.Debugf("Bot: could not notify creator %d: %v", creator.ID, err)
		return false
	}
	return true
}

func (b *Bot) relatedChatLines(ctx context.Context, ids []int64) []string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		chat, err := b.platform.Chat(ctx, id)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%d (unavailable)", id))
			continue
		}
		line := chat.DisplayName()
		if chat.Username != "" {
			line += " (@" + chat.Username + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// sendRules sends a group's rules to the requesting user privately.
func (b *Bot) sendRules(ctx context.Context, req *bus.Request, chat platform.Chat) error {
	user := req.Event.Sender
	b.notifyCreator(ctx, chat.ID, fmt.Sprintf("%s just requested the rules for %s.",
		sanitize.Mention(user.Username, user.Name()), chat.DisplayName()))

	g, err := b.group(chat)
	if err != nil {
		return err
	}
	if g.Rules == "" {
		return req.Reply(ctx, "No rules set for this group yet. Just don't be a meanie, okay?")
	}

	var sb strings.Builder
	sb.WriteString(chat.DisplayName() + "\n\n")
	if desc := b.description(ctx, chat.ID, g); desc != "" {
		sb.WriteString(desc + "\n\n")
	}
	sb.WriteString("The group rules are:\n" + g.Rules)
	if mods, err := b.listMods(ctx, chat.ID); err == nil && len(mods) > 0 {
		sb.WriteString("\n\nYour mods are:\n" + strings.Join(mods, "\n"))
	}
	if len(g.RelatedChats) > 0 {
		sb.WriteString("\n\nRelated chats:\n" + strings.Join(b.relatedChatLines(ctx, g.RelatedChats), "\n"))
	}

	if _, err := b.platform.Send(ctx, user.ID, sb.String(), nil); err != nil {
		return fmt.Errorf("send rules of %d to %d: %w", chat.ID, user.ID, err)
	}
	return nil
}

func (b *Bot) handleRules(ctx context.Context, req *bus.Request) error {
	return b.sendRules(ctx, req, req.Target)
}

// setText stores an optional free-text field of a group.
func (b *Bot) setText(ctx context.Context, req *bus.Request, set func(g *storage.Group, text string), setMsg, clearMsg string) error {
	text := sanitize.UserText(req.Args)
	if _, err := b.store.UpdateGroup(req.Target.ID, func(g *storage.Group) error {
		if g.Title == "" {
			g.Title = req.Target.Title
		}
		set(g, text)
		return nil
	}); err != nil {
		return err
	}

	msg := setMsg
	if text == "" {
		msg = clearMsg
	}
	return req.Replyf(ctx, msg, req.Target.DisplayName())
}

func (b *Bot) handleSetRules(ctx context.Context, req *bus.Request) error {
	return b.setText(ctx, req, func(g *storage.Group, text string) { g.Rules = text },
		"Rules set for %s.", "Rules removed from %s.")
}

func (b *Bot) handleDescription(ctx context.Context, req *bus.Request) error {
	g, err := b.group(req.Target)
	if err != nil {
		return err
	}
	desc := b.description(ctx, req.Target.ID, g)
	if desc == "" {
		return req.Replyf(ctx, "%s has no description.", req.Target.DisplayName())
	}

	text := req.Target.DisplayName() + "\n\n" + desc
	if _, err := b.platform.Send(ctx, req.Event.Sender.ID, text, nil); err != nil {
		return fmt.Errorf("send description of %d to %d: %w", req.Target.ID, req.Event.Sender.ID, err)
	}
	return nil
}

func (b *Bot) handleSetDescription(ctx context.Context, req *bus.Request) error {
	return b.setText(ctx, req, func(g *storage.Group, text string) { g.Description = text },
		"Description set for %s.", "Description of %s reset to the Telegram description.")
}

func (b *Bot) handleSetWelcome(ctx context.Context, req *bus.Request) error {
	return b.setText(ctx, req, func(g *storage.Group, text string) { g.WelcomeMessage = text },
		"Welcome message set for %s.", "Welcome message of %s reset to default.")
}

// parseBool accepts the spellings people use for yes and no.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid truth value %q", s)
}

func (b *Bot) handleToggleWelcome(ctx context.Context, req *bus.Request) error {
	enabled, err := parseBool(req.Args)
	if err != nil {
		g, err := b.group(req.Target)
		if err != nil {
			return err
		}
		return req.Replyf(ctx, "Welcome in %s: %t. Please specify true or false to change.", req.Target.DisplayName(), g.WelcomeEnabled)
	}

	if _, err := b.store.UpdateGroup(req.Target.ID, func(g *storage.Group) error {
		g.WelcomeEnabled = enabled
		return nil
	}); err != nil {
		return err
	}
	return req.Replyf(ctx, "Welcome in %s: %t", req.Target.DisplayName(), enabled)
}

func (b *Bot) handleRelatedChats(ctx context.Context, req *bus.Request) error {
	g, err := b.group(req.Target)
	if err != nil {
		return err
	}
	if len(g.RelatedChats) == 0 {
		return req.Replyf(ctx, "There are no known related chats for %s.", req.Target.DisplayName())
	}

	text := fmt.Sprintf("%s\n\nRelated chats:\n%s", req.Target.DisplayName(),
		strings.Join(b.relatedChatLines(ctx, g.RelatedChats), "\n"))
	if _, err := b.platform.Send(ctx, req.Event.Sender.ID, text, nil); err != nil {
		return fmt.Errorf("send related chats of %d to %d: %w", req.Target.ID, req.Event.Sender.ID, err)
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, errorx.NewUserError(fmt.Sprintf("%q is not a chat id.", s), err)
	}
	return id, nil
}

func (b *Bot) handleAddRelatedChat(ctx context.Context, req *bus.Request) error {
	if strings.TrimSpace(req.Args) == "" {
		return b.offerRelatedChats(ctx, req)
	}

	id, err := parseChatID(req.Args)
	if err != nil {
		return err
	}
	if id == req.Target.ID {
		return errorx.NewUserError("A chat cannot be related to itself.", nil)
	}
	chat, err := b.platform.Chat(ctx, id)
	if errors.Is(err, platform.ErrChatNotFound) {
		return errorx.NewUserError(fmt.Sprintf("I can't find chat %d. Add me to it first.", id), err)
	}
	if err != nil {
		return err
	}

	if _, err := b.store.UpdateGroup(req.Target.ID, func(g *storage.Group) error {
		if !slices.Contains(g.RelatedChats, id) {
			g.RelatedChats = append(g.RelatedChats, id)
		}
		return nil
	}); err != nil {
		return err
	}
	return req.Replyf(ctx, "Added %s to the related chats of %s.", chat.DisplayName(), req.Target.DisplayName())
}

// offerRelatedChats lists the user's other chats as buttons that each
// carry a complete /addrelatedchat command for the target.
func (b *Bot) offerRelatedChats(ctx context.Context, req *bus.Request) error {
	cands, err := b.resolver.Candidates(ctx, routing.Query{
		UserID:         req.Event.Sender.ID,
		InvokingChatID: req.Target.ID,
	})
	if errors.Is(err, routing.ErrResolutionEmpty) {
		return req.Reply(ctx, "I couldn't find any other chats we share.")
	}
	if err != nil {
		return err
	}

	var kb platform.Keyboard
	for _, c := range cands {
		btn, err := routing.RouteButton(sanitize.ButtonLabel(c.Title), req.Target.ID,
			fmt.Sprintf("/addrelatedchat %d", c.ChatID))
		if err != nil {
			logger.Warnf("Bot: skipping related chat %d: %v", c.ChatID, err)
			continue
		}
		kb = append(kb, []platform.Button{btn})
	}

	_, err = req.ReplyWithKeyboard(ctx, fmt.Sprintf("Which chat is related to %s?", req.Target.DisplayName()), kb)
	return err
}

func (b *Bot) handleRemoveRelatedChat(ctx context.Context, req *bus.Request) error {
	if strings.TrimSpace(req.Args) == "" {
		return errorx.NewUserError("Usage: /removerelatedchat <chat id>", nil)
	}
	id, err := parseChatID(req.Args)
	if err != nil {
		return err
	}

	removed := false
	if _, err := b.store.UpdateGroup(req.Target.ID, func(g *storage.Group) error {
		n := len(g.RelatedChats)
		g.RelatedChats = slices.DeleteFunc(g.RelatedChats, func(c int64) bool { return c == id })
		removed = len(g.RelatedChats) != n
		return nil
	}); err != nil {
		return err
	}

	if !removed {
		return req.Replyf(ctx, "%d is not a related chat of %s.", id, req.Target.DisplayName())
	}
	return req.Replyf(ctx, "Removed %d from the related chats of %s.", id, req.Target.DisplayName())
}

func (b *Bot) handleInviteLink(ctx context.Context, req *bus.Request) error {
	link, err := b.platform.InviteLink(ctx, req.Target.ID)
	if errors.Is(err, platform.ErrNoRights) || (err == nil && link == "") {
		return req.Replyf(ctx, "%s does not have an invite link.", req.Target.DisplayName())
	}
	if err != nil {
		return err
	}
	return req.Replyf(ctx, "Invite link for %s is %s", req.Target.DisplayName(), link)
}

func (b *Bot) handleRevokeInviteLink(ctx context.Context, req *bus.Request) error {
	if _, err := b.platform.RevokeInviteLink(ctx, req.Target.ID); err != nil {
		if errors.Is(err, platform.ErrNoRights) {
			return errorx.NewUserError(fmt.Sprintf("I need the right to invite users in %s.", req.Target.DisplayName()), err)
		}
		return err
	}
	return req.Replyf(ctx, "Invite link for %s revoked.", req.Target.DisplayName())
}

func (b *Bot) handleSay(ctx context.Context, req *bus.Request) error {
	text := sanitize.UserText(req.Args)
	if text == "" {
		return errorx.NewUserError("Usage: /say <text>", nil)
	}
	return req.Announce(ctx, text)
}
