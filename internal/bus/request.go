package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mod-gobot/internal/platform"
)

// Request is one command invocation travelling through a pipeline.
type Request struct {
	Event   Event
	Command Command
	Name    string
	Args    string
	// Target is the chat the command acts on. It equals the event chat
	// unless a middleware resolved it elsewhere.
	Target   platform.Chat
	Platform platform.Platform

	bus *Bus

	roleMu     sync.Mutex
	role       platform.Role
	roleTarget int64
	roleErr    error
	roleLoaded bool
}

// Bus returns the bus the request was published on.
func (r *Request) Bus() *Bus {
	return r.bus
}

// Fields splits the arguments on whitespace.
func (r *Request) Fields() []string {
	return strings.Fields(r.Args)
}

// SetText replaces the event text and re-derives the arguments.
func (r *Request) SetText(text string) {
	r.Event.Text = text
	username := ""
	if r.Platform != nil {
		username = r.Platform.Username()
	}
	if name, args, ok := ParseCommand(text, username); ok {
		r.Name = name
		r.Args = args
	}
}

// CommandText is "/name args" as the user would type it.
func (r *Request) CommandText() string {
	if r.Args == "" {
		return "/" + r.Name
	}
	return "/" + r.Name + " " + r.Args
}

// InvokingChatID is where replies to the user go.
func (r *Request) InvokingChatID() int64 {
	return r.Event.InvokingChatID()
}

// Reply sends text to the chat the user typed the command in.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Platform.Send(ctx, r.InvokingChatID(), text, nil)
	return err
}

// Replyf is Reply with formatting.
func (r *Request) Replyf(ctx context.Context, format string, args ...any) error {
	return r.Reply(ctx, fmt.Sprintf(format, args...))
}

// ReplyWithKeyboard sends text with buttons to the invoking chat.
func (r *Request) ReplyWithKeyboard(ctx context.Context, text string, kb platform.Keyboard) (platform.MessageRef, error) {
	return r.Platform.Send(ctx, r.InvokingChatID(), text, kb)
}

// Announce sends text to the target chat.
func (r *Request) Announce(ctx context.Context, text string) error {
	_, err := r.Platform.Send(ctx, r.Target.ID, text, nil)
	return err
}

// Role returns the sender's role in the target chat. The lookup is made
// once per request and target.
func (r *Request) Role(ctx context.Context) (platform.Role, error) {
	r.roleMu.Lock()
	defer r.roleMu.Unlock()

	if r.roleLoaded && r.roleTarget == r.Target.ID {
		return r.role, r.roleErr
	}
	r.role, r.roleErr = r.Platform.Role(ctx, r.Target.ID, r.Event.Sender.ID)
	r.roleTarget = r.Target.ID
	r.roleLoaded = true
	return r.role, r.roleErr
}

// ReplyUser is the author of the message the command replied to.
func (r *Request) ReplyUser() (platform.User, bool) {
	if r.Event.Reply == nil || r.Event.Reply.User.ID == 0 {
		return platform.User{}, false
	}
	return r.Event.Reply.User, true
}
