package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/telebot.v4"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/platform"
)

// Telegram implements platform.Platform on top of telebot.
type Telegram struct {
	api *telebot.Bot
}

var _ platform.Platform = (*Telegram)(nil)

// NewTelegram wraps an authenticated telebot client.
func NewTelegram(api *telebot.Bot) *Telegram {
	return &Telegram{api: api}
}

// mapError translates telebot failures into platform and errorx kinds so
// callers never need to know about telebot.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, telebot.ErrChatNotFound),
		errors.Is(err, telebot.ErrKickedFromGroup),
		errors.Is(err, telebot.ErrKickedFromSuperGroup),
		errors.Is(err, telebot.ErrKickedFromChannel),
		errors.Is(err, telebot.ErrGroupMigrated):
		return errorx.Permanent(fmt.Errorf("%w: %v", platform.ErrChatNotFound, err))
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrNotStartedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated):
		return errorx.Permanent(fmt.Errorf("%w: %v", platform.ErrCannotMessageUser, err))
	case errors.Is(err, telebot.ErrNoRightsToRestrict),
		errors.Is(err, telebot.ErrNoRightsToDelete),
		errors.Is(err, telebot.ErrNoRightsToSend):
		return errorx.Permanent(fmt.Errorf("%w: %v", platform.ErrNoRights, err))
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return errorx.Transient(err)
	}
	var group telebot.GroupError
	if errors.As(err, &group) {
		return errorx.Permanent(fmt.Errorf("%w: migrated to %d", platform.ErrChatNotFound, group.MigratedTo))
	}
	var apiErr *telebot.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 500 {
		return errorx.Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errorx.Transient(err)
	}
	return err
}

func chatType(t telebot.ChatType) platform.ChatType {
	switch t {
	case telebot.ChatPrivate:
		return platform.ChatPrivate
	case telebot.ChatGroup:
		return platform.ChatGroup
	case telebot.ChatSuperGroup:
		return platform.ChatSuperGroup
	default:
		return platform.ChatChannel
	}
}

func toChat(c *telebot.Chat) platform.Chat {
	if c == nil {
		return platform.Chat{}
	}
	title := c.Title
	if title == "" && c.Type == telebot.ChatPrivate {
		title = c.FirstName
	}
	return platform.Chat{
		ID:          c.ID,
		Type:        chatType(c.Type),
		Title:       title,
		Username:    c.Username,
		Description: c.Description,
	}
}

func toUser(u *telebot.User) platform.User {
	if u == nil {
		return platform.User{}
	}
	return platform.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

func toRole(s telebot.MemberStatus) platform.Role {
	switch s {
	case telebot.Creator:
		return platform.RoleCreator
	case telebot.Administrator:
		return platform.RoleAdmin
	case telebot.Member:
		return platform.RoleMember
	case telebot.Restricted:
		return platform.RoleRestricted
	case telebot.Kicked:
		return platform.RoleKicked
	default:
		return platform.RoleLeft
	}
}

func toMarkup(kb platform.Keyboard) *telebot.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]telebot.InlineButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telebot.InlineButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telebot.InlineButton{
				Unique: b.Unique,
				Text:   b.Label,
				Data:   b.Data,
				URL:    b.URL,
			})
		}
		rows = append(rows, buttons)
	}
	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

func (t *Telegram) Chat(ctx context.Context, chatID int64) (platform.Chat, error) {
	chat, err := t.api.ChatByID(chatID)
	if err != nil {
		return platform.Chat{}, mapError(err)
	}
	return toChat(chat), nil
}

func (t *Telegram) Role(ctx context.Context, chatID, userID int64) (platform.Role, error) {
	member, err := t.api.ChatMemberOf(&telebot.Chat{ID: chatID}, &telebot.User{ID: userID})
	if err != nil {
		return "", mapError(err)
	}
	return toRole(member.Role), nil
}

func (t *Telegram) Admins(ctx context.Context, chatID int64) ([]platform.Member, error) {
	admins, err := t.api.AdminsOf(&telebot.Chat{ID: chatID})
	if err != nil {
		return nil, mapError(err)
	}
	members := make([]platform.Member, 0, len(admins))
	for _, a := range admins {
		members = append(members, platform.Member{User: toUser(a.User), Role: toRole(a.Role)})
	}
	return members, nil
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string, kb platform.Keyboard) (platform.MessageRef, error) {
	opts := &telebot.SendOptions{DisableWebPagePreview: true}
	if markup := toMarkup(kb); markup != nil {
		opts.ReplyMarkup = markup
	}

	msg, err := t.api.Send(&telebot.Chat{ID: chatID}, text, opts)
	if err != nil {
		return platform.MessageRef{}, mapError(err)
	}
	return platform.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func (t *Telegram) Delete(ctx context.Context, ref platform.MessageRef) error {
	return mapError(t.api.Delete(&telebot.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}))
}

func (t *Telegram) Kick(ctx context.Context, chatID, userID int64) error {
	chat := &telebot.Chat{ID: chatID}
	user := &telebot.User{ID: userID}
	if err := t.api.Ban(chat, &telebot.ChatMember{User: user}); err != nil {
		return mapError(err)
	}
	return mapError(t.api.Unban(chat, user, true))
}

func (t *Telegram) Ban(ctx context.Context, chatID, userID int64) error {
	return mapError(t.api.Ban(&telebot.Chat{ID: chatID}, &telebot.ChatMember{User: &telebot.User{ID: userID}}))
}

func (t *Telegram) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	return mapError(t.api.Restrict(&telebot.Chat{ID: chatID}, &telebot.ChatMember{
		User:            &telebot.User{ID: userID},
		Rights:          telebot.NoRights(),
		RestrictedUntil: until.Unix(),
	}))
}

func (t *Telegram) Unrestrict(ctx context.Context, chatID, userID int64) error {
	return mapError(t.api.Restrict(&telebot.Chat{ID: chatID}, &telebot.ChatMember{
		User:   &telebot.User{ID: userID},
		Rights: telebot.NoRestrictions(),
	}))
}

func (t *Telegram) InviteLink(ctx context.Context, chatID int64) (string, error) {
	chat, err := t.api.ChatByID(chatID)
	if err != nil {
		return "", mapError(err)
	}
	if chat.InviteLink != "" {
		return chat.InviteLink, nil
	}
	link, err := t.api.InviteLink(chat)
	return link, mapError(err)
}

// RevokeInviteLink exports a fresh primary link, which invalidates the
// previous one.
func (t *Telegram) RevokeInviteLink(ctx context.Context, chatID int64) (string, error) {
	link, err := t.api.InviteLink(&telebot.Chat{ID: chatID})
	return link, mapError(err)
}

func (t *Telegram) Username() string {
	return t.api.Me.Username
}
