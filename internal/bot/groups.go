package bot

import (
	"context"
	"strings"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
)

// DefaultWelcome is used when a group has no welcome message of its own.
const DefaultWelcome = "Hello {usernames}, welcome to {title}! Please make sure to read the /rules by pressing the button below."

const rulesButtonLabel = "Click and press START to read the rules"

// trackGroup records every group the bot hears from so the resolver can
// offer it later.
func (b *Bot) trackGroup(ctx context.Context, ev bus.Event) {
	if ev.Provenance.Synthetic || !ev.ChatType.IsGroup() {
		return
	}
	if err := b.store.TrackGroup(ev.ChatID, ev.ChatTitle); err != nil {
		logger.Warnf("Bot: failed to track group %d: %v", ev.ChatID, err)
	}
}

// Welcome greets new human members of a group.
func (b *Bot) Welcome(ctx context.Context, chat platform.Chat, joined []platform.User) error {
	if !chat.Type.IsGroup() {
		return nil
	}
	if err := b.store.TrackGroup(chat.ID, chat.Title); err != nil {
		logger.Warnf("Bot: failed to track group %d: %v", chat.ID, err)
	}

	g, err := b.group(chat)
	if err != nil {
		return err
	}
	if !g.WelcomeEnabled {
		return nil
	}

	var names []string
	for _, u := range joined {
		if u.IsBot {
			continue
		}
		names = append(names, mention(u))
	}
	if len(names) == 0 {
		return nil
	}

	template := g.WelcomeMessage
	if template == "" {
		template = DefaultWelcome
	}
	text := b.renderWelcome(ctx, template, chat, g.Description, names)

	kb := platform.Keyboard{{{Label: rulesButtonLabel, URL: b.rulesLink(chat.ID)}}}
	_, err = b.platform.Send(ctx, chat.ID, text, kb)
	return err
}

// renderWelcome fills the placeholders a welcome template may use. Lookups
// that need the platform only happen when the template asks for them.
func (b *Bot) renderWelcome(ctx context.Context, template string, chat platform.Chat, storedDesc string, names []string) string {
	values := []string{
		"{usernames}", strings.Join(names, ", "),
		"{title}", chat.DisplayName(),
		"{rules_with_start}", b.rulesLink(chat.ID),
	}

	if strings.Contains(template, "{invite_link}") {
		link, err := b.platform.InviteLink(ctx, chat.ID)
		if err != nil {
			logger.Debugf("Bot: invite link of %d unavailable: %v", chat.ID, err)
		}
		values = append(values, "{invite_link}", link)
	}
	if strings.Contains(template, "{mods}") {
		mods, err := b.listMods(ctx, chat.ID)
		if err != nil {
			logger.Debugf("Bot: mods of %d unavailable: %v", chat.ID, err)
		}
		values = append(values, "{mods}", strings.Join(mods, ", "))
	}
	if strings.Contains(template, "{description}") {
		desc := storedDesc
		if desc == "" {
			desc = chat.Description
		}
		values = append(values, "{description}", desc)
	}

	return strings.NewReplacer(values...).Replace(template)
}

// Migrate moves stored state from a group to its supergroup.
func (b *Bot) Migrate(from, to int64) error {
	logger.Infof("Bot: group migration %d -> %d", from, to)

	if err := b.store.MigrateGroup(from, to); err != nil {
		return err
	}
	if b.silencer.IsSilenced(from) {
		b.silencer.Set(from, false)
		b.silencer.Set(to, true)
	}
	return nil
}
