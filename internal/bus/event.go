// Package bus carries inbound chat events through per-command middleware
// pipelines. Real updates and synthetic replays use the same Event type and
// the same Publish path.
package bus

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"mod-gobot/internal/platform"
)

// Provenance records where an event came from. Synthetic events are
// reconstructed by the replay dispatcher after a button press.
type Provenance struct {
	Synthetic      bool
	CallbackID     string
	OriginChatID   int64
	OriginChatType platform.ChatType
}

// Event is one inbound message addressed to a chat.
type Event struct {
	ID            string
	CorrelationID string
	ChatID        int64
	ChatType      platform.ChatType
	ChatTitle     string
	Sender        platform.User
	Text          string
	MessageID     int
	Reply         *platform.ReplyContext
	Provenance    Provenance
	ReceivedAt    time.Time
}

// NewID returns a time-ordered event id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Chat returns the addressed chat as platform metadata.
func (e Event) Chat() platform.Chat {
	return platform.Chat{ID: e.ChatID, Type: e.ChatType, Title: e.ChatTitle}
}

// InvokingChatID is the chat the user actually typed in. For a synthetic
// event that is the origin chat, not the addressed one.
func (e Event) InvokingChatID() int64 {
	if e.Provenance.Synthetic && e.Provenance.OriginChatID != 0 {
		return e.Provenance.OriginChatID
	}
	return e.ChatID
}

// InvokingChatType mirrors InvokingChatID for the chat type.
func (e Event) InvokingChatType() platform.ChatType {
	if e.Provenance.Synthetic && e.Provenance.OriginChatType != "" {
		return e.Provenance.OriginChatType
	}
	return e.ChatType
}

// Clone returns a copy that shares no pointers with e.
func (e Event) Clone() Event {
	c := e
	if e.Reply != nil {
		r := *e.Reply
		c.Reply = &r
	}
	return c
}

// ParseCommand splits "/name@bot args" into a lower-cased name and the
// argument text. ok is false for plain text and for commands addressed to
// a different bot.
func ParseCommand(text, botUsername string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", "", false
	}

	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}

	head = head[1:]
	if at := strings.IndexByte(head, '@'); at >= 0 {
		if botUsername == "" || !strings.EqualFold(head[at+1:], botUsername) {
			return "", "", false
		}
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}

	return strings.ToLower(head), strings.TrimSpace(rest), true
}
