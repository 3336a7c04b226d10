// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mod-gobot/internal/platform"
)

// Sent is a message recorded by Fake.Send.
type Sent struct {
	ChatID   int64
	Text     string
	Keyboard platform.Keyboard
	Ref      platform.MessageRef
}

// Action is a moderation call recorded by Fake.
type Action struct {
	ChatID int64
	UserID int64
	Until  time.Time
}

// Fake is a scriptable Platform. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	username   string
	chats      map[int64]platform.Chat
	roles      map[int64]map[int64]platform.Role
	users      map[int64]platform.User
	chatErrs   map[int64]error
	sendErrs   map[int64]error
	sendOnce   map[int64][]error
	links      map[int64]int
	nextMsgID  int
	sent       []Sent
	deleted    []platform.MessageRef
	kicked     []Action
	banned     []Action
	restricted []Action
	lifted     []Action
}

var _ platform.Platform = (*Fake)(nil)

// New creates a Fake whose bot is called username.
func New(username string) *Fake {
	return &Fake{
		username: username,
		chats:    make(map[int64]platform.Chat),
		roles:    make(map[int64]map[int64]platform.Role),
		users:    make(map[int64]platform.User),
		chatErrs: make(map[int64]error),
		sendErrs: make(map[int64]error),
		sendOnce: make(map[int64][]error),
		links:    make(map[int64]int),
	}
}

// AddChat makes a chat known.
func (f *Fake) AddChat(chat platform.Chat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chat.ID] = chat
}

// RemoveChat makes lookups of chatID fail with platform.ErrChatNotFound.
func (f *Fake) RemoveChat(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, chatID)
	delete(f.roles, chatID)
}

// SetRole sets a user's role in a chat.
func (f *Fake) SetRole(chatID int64, user platform.User, role platform.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roles[chatID] == nil {
		f.roles[chatID] = make(map[int64]platform.Role)
	}
	f.roles[chatID][user.ID] = role
	f.users[user.ID] = user
}

// FailChat makes every lookup of chatID return err.
func (f *Fake) FailChat(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.chatErrs, chatID)
		return
	}
	f.chatErrs[chatID] = err
}

// FailSend makes sends to chatID return err.
func (f *Fake) FailSend(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.sendErrs, chatID)
		return
	}
	f.sendErrs[chatID] = err
}

// FailSendOnce queues err for the next send to chatID only. Queued errors
// are returned in order before FailSend's error is consulted.
func (f *Fake) FailSendOnce(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendOnce[chatID] = append(f.sendOnce[chatID], err)
}

func (f *Fake) lookup(chatID int64) (platform.Chat, error) {
	if err := f.chatErrs[chatID]; err != nil {
		return platform.Chat{}, err
	}
	chat, ok := f.chats[chatID]
	if !ok {
		return platform.Chat{}, platform.ErrChatNotFound
	}
	return chat, nil
}

func (f *Fake) Chat(ctx context.Context, chatID int64) (platform.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookup(chatID)
}

func (f *Fake) Role(ctx context.Context, chatID, userID int64) (platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(chatID); err != nil {
		return "", err
	}
	if role, ok := f.roles[chatID][userID]; ok {
		return role, nil
	}
	return platform.RoleLeft, nil
}

func (f *Fake) Admins(ctx context.Context, chatID int64) ([]platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(chatID); err != nil {
		return nil, err
	}
	var members []platform.Member
	for userID, role := range f.roles[chatID] {
		if role.IsAdmin() {
			members = append(members, platform.Member{User: f.users[userID], Role: role})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].User.ID < members[j].User.ID })
	return members, nil
}

func (f *Fake) Send(ctx context.Context, chatID int64, text string, kb platform.Keyboard) (platform.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queued := f.sendOnce[chatID]; len(queued) > 0 {
		f.sendOnce[chatID] = queued[1:]
		return platform.MessageRef{}, queued[0]
	}
	if err := f.sendErrs[chatID]; err != nil {
		return platform.MessageRef{}, err
	}
	f.nextMsgID++
	ref := platform.MessageRef{ChatID: chatID, MessageID: f.nextMsgID}
	f.sent = append(f.sent, Sent{ChatID: chatID, Text: text, Keyboard: kb, Ref: ref})
	return ref, nil
}

func (f *Fake) Delete(ctx context.Context, ref platform.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *Fake) Kick(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, Action{ChatID: chatID, UserID: userID})
	if f.roles[chatID] != nil {
		f.roles[chatID][userID] = platform.RoleLeft
	}
	return nil
}

func (f *Fake) Ban(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, Action{ChatID: chatID, UserID: userID})
	if f.roles[chatID] != nil {
		f.roles[chatID][userID] = platform.RoleKicked
	}
	return nil
}

func (f *Fake) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restricted = append(f.restricted, Action{ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (f *Fake) Unrestrict(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lifted = append(f.lifted, Action{ChatID: chatID, UserID: userID})
	return nil
}

func (f *Fake) InviteLink(ctx context.Context, chatID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(chatID); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/+fake%d_%d", -chatID, f.links[chatID]), nil
}

func (f *Fake) RevokeInviteLink(ctx context.Context, chatID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(chatID); err != nil {
		return "", err
	}
	f.links[chatID]++
	return fmt.Sprintf("https://t.me/+fake%d_%d", -chatID, f.links[chatID]), nil
}

func (f *Fake) Username() string {
	return f.username
}

// Sent returns every message sent so far.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentTo returns the messages sent to chatID.
func (f *Fake) SentTo(chatID int64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message sent to chatID.
func (f *Fake) Last(chatID int64) (Sent, bool) {
	msgs := f.SentTo(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Deleted returns the deleted message refs.
func (f *Fake) Deleted() []platform.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.MessageRef(nil), f.deleted...)
}

// Kicked returns recorded kicks.
func (f *Fake) Kicked() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.kicked...)
}

// Banned returns recorded bans.
func (f *Fake) Banned() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.banned...)
}

// Restricted returns recorded restrictions.
func (f *Fake) Restricted() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.restricted...)
}

// Unrestricted returns recorded lifted restrictions.
func (f *Fake) Unrestricted() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.lifted...)
}
