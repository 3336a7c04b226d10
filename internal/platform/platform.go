// Package platform describes the chat operations the bot needs from a
// messaging backend. The Telegram implementation lives in internal/bot;
// routing and command code depend only on this package.
package platform

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrChatNotFound means the chat no longer exists or the bot was removed from it.
	ErrChatNotFound = errors.New("chat not found")
	// ErrCannotMessageUser means the bot may not open a private chat with the user.
	ErrCannotMessageUser = errors.New("bot cannot message user")
	// ErrNoRights means the bot lacks the admin right required for an action.
	ErrNoRights = errors.New("bot lacks required rights")
)

// ChatType classifies a chat.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether members can be moderated in this kind of chat.
func (t ChatType) IsGroup() bool {
	return t == ChatGroup || t == ChatSuperGroup
}

// Chat is the metadata the bot needs about a chat.
type Chat struct {
	ID          int64
	Type        ChatType
	Title       string
	Username    string
	Description string
}

// DisplayName returns the chat title, falling back to its username.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return "this chat"
}

// User identifies a chat participant.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// Name returns the display name of the user.
func (u User) Name() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Role is a user's membership status in a chat.
type Role string

const (
	RoleCreator    Role = "creator"
	RoleAdmin      Role = "administrator"
	RoleMember     Role = "member"
	RoleRestricted Role = "restricted"
	RoleLeft       Role = "left"
	RoleKicked     Role = "kicked"
)

// IsAdmin reports whether the role can moderate.
func (r Role) IsAdmin() bool {
	return r == RoleCreator || r == RoleAdmin
}

// InChat reports whether the role is a current participant.
func (r Role) InChat() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleMember, RoleRestricted:
		return true
	}
	return false
}

// Member pairs a user with their role.
type Member struct {
	User User
	Role Role
}

// ReplyContext is the message a command was sent in reply to.
type ReplyContext struct {
	MessageID int
	User      User
}

// MessageRef points at a sent message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button. Exactly one of Data or URL is set.
// Unique selects the callback endpoint that receives Data.
type Button struct {
	Label  string
	Unique string
	Data   string
	URL    string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Len counts the buttons in the keyboard.
func (k Keyboard) Len() int {
	n := 0
	for _, row := range k {
		n += len(row)
	}
	return n
}

// Platform is the set of chat operations used by the bot.
type Platform interface {
	// Chat returns live metadata for a chat.
	Chat(ctx context.Context, chatID int64) (Chat, error)
	// Role returns the user's membership status in a chat.
	Role(ctx context.Context, chatID, userID int64) (Role, error)
	// Admins lists a chat's creator and administrators.
	Admins(ctx context.Context, chatID int64) ([]Member, error)

	// Send posts text, optionally with an inline keyboard.
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error)
	// Delete removes a message.
	Delete(ctx context.Context, ref MessageRef) error

	// Kick removes a user without banning them permanently.
	Kick(ctx context.Context, chatID, userID int64) error
	// Ban removes a user and prevents them from rejoining.
	Ban(ctx context.Context, chatID, userID int64) error
	// Restrict stops a user from sending messages until the given time.
	Restrict(ctx context.Context, chatID, userID int64, until time.Time) error
	// Unrestrict lifts a restriction.
	Unrestrict(ctx context.Context, chatID, userID int64) error

	// InviteLink returns the chat's primary invite link, creating one if needed.
	InviteLink(ctx context.Context, chatID int64) (string, error)
	// RevokeInviteLink replaces the primary invite link and returns the new one.
	RevokeInviteLink(ctx context.Context, chatID int64) (string, error)

	// Username is the bot's own username.
	Username() string
}

// Creator returns the creator among members, if present.
func Creator(members []Member) (User, bool) {
	for _, m := range members {
		if m.Role == RoleCreator {
			return m.User, true
		}
	}
	return User{}, false
}
