package routing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
)

// Callback acknowledgements shown to the user who pressed a button.
const (
	AckLostMessage = "I lost your message, most likely due to a restart. Please retry."
	AckBadButton   = "Sorry, I don't understand that button."
	AckNotYours    = "This button belongs to someone else."
	AckChatGone    = "I can't reach that chat anymore."
	AckNoChats     = "None of those chats are available anymore."
)

var errNotYours = errors.New("routing: pending command belongs to another user")

// Publisher re-injects events into the normal processing path.
type Publisher interface {
	Publish(ctx context.Context, ev bus.Event) error
}

// Callback is a routing button press.
type Callback struct {
	ID       string
	Data     string
	From     platform.User
	Message  platform.MessageRef
	ChatType platform.ChatType
}

// Dispatcher suspends commands that need a target, presents the choice
// and replays the command once a button is pressed.
type Dispatcher struct {
	cache     *PendingCache
	resolver  *Resolver
	platform  platform.Platform
	publisher Publisher
	registry  *bus.Registry
}

// NewDispatcher creates a Dispatcher. Bind must be called before the
// first callback is handled.
func NewDispatcher(cache *PendingCache, resolver *Resolver, p platform.Platform) *Dispatcher {
	return &Dispatcher{cache: cache, resolver: resolver, platform: p}
}

// Bind attaches the bus that replayed events are published on.
func (d *Dispatcher) Bind(b *bus.Bus) {
	d.publisher = b
	d.registry = b.Registry()
}

// Cache returns the pending-command cache.
func (d *Dispatcher) Cache() *PendingCache {
	return d.cache
}

func rolesFor(perm bus.Permission) RoleFilter {
	switch perm {
	case bus.PermAdmin, bus.PermCreator:
		return AdminRoles
	default:
		return DefaultRoles
	}
}

// command looks up the registered command text invokes.
func (d *Dispatcher) command(text string) (bus.Command, bool) {
	if d.registry == nil {
		return bus.Command{}, false
	}
	name, _, ok := bus.ParseCommand(text, d.platform.Username())
	if !ok {
		return bus.Command{}, false
	}
	return d.registry.Lookup(name)
}

func (d *Dispatcher) permissionOf(text string) bus.Permission {
	cmd, ok := d.command(text)
	if !ok {
		return bus.PermAny
	}
	return cmd.Permission
}

// Suspend caches the request's command under its invoking chat and asks
// the user which chat it is meant for.
func (d *Dispatcher) Suspend(ctx context.Context, req *bus.Request) error {
	invoking := req.InvokingChatID()

	control, err := d.resolver.IsControlChannel(invoking)
	if err != nil {
		return err
	}

	cands, err := d.resolver.Candidates(ctx, Query{
		UserID:         req.Event.Sender.ID,
		InvokingChatID: invoking,
		Roles:          rolesFor(req.Command.Permission),
	})
	if err != nil {
		return err
	}

	kb, err := BuildKeyboard(cands, control, "")
	if err != nil {
		return err
	}

	d.cache.Put(invoking, PendingCommand{
		OriginChatID:   invoking,
		OriginChatType: req.Event.InvokingChatType(),
		Sender:         req.Event.Sender,
		Text:           req.Event.Text,
		Reply:          req.Event.Reply,
	})

	logger.Debugf("routing: suspended %q from %d with %d candidates", req.CommandText(), invoking, len(cands))

	_, err = req.ReplyWithKeyboard(ctx, fmt.Sprintf("Which chat should %s go to?", req.CommandText()), kb)
	return err
}

// HandleCallback turns a button press into replayed events and returns
// the acknowledgement to show the presser.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb Callback) (string, error) {
	if d.publisher == nil {
		return "", errors.New("routing: dispatcher is not bound to a bus")
	}

	tok, err := DecodeToken(cb.Data)
	if err != nil {
		logger.Warnf("routing: callback %s: %v", cb.ID, err)
		return AckBadButton, nil
	}

	origin := cb.Message.ChatID
	var cmd PendingCommand
	if tok.UsesCache() {
		cmd, err = d.cache.TakeIf(origin, func(p PendingCommand) bool {
			return p.Sender.ID == cb.From.ID
		})
		switch {
		case errors.Is(err, errNotYours):
			return AckNotYours, nil
		case err != nil:
			logger.Debugf("routing: callback %s in %d: %v", cb.ID, origin, err)
			return AckLostMessage, nil
		}
	} else {
		cmd = PendingCommand{
			OriginChatID:   origin,
			OriginChatType: cb.ChatType,
			Sender:         cb.From,
			Text:           tok.Command,
		}
	}

	if err := d.platform.Delete(ctx, cb.Message); err != nil {
		logger.Debugf("routing: could not delete keyboard %d in %d: %v", cb.Message.MessageID, origin, err)
	}

	targets, ack := d.targets(ctx, tok.ChatID, cb.From.ID, origin, cmd.Text)
	if len(targets) == 0 {
		return ack, nil
	}

	// Each replay would otherwise ask on its own and the prompts would
	// overwrite one another in the cache.
	if len(targets) > 1 && !hasSentinel(cmd.Text) {
		if c, ok := d.command(cmd.Text); ok && c.Dangerous {
			return d.confirmAll(ctx, origin, cmd, len(targets))
		}
	}

	for _, t := range targets {
		ev := bus.Event{
			ID:            bus.NewID(),
			CorrelationID: cb.ID,
			ChatID:        t.ChatID,
			ChatType:      t.Type,
			ChatTitle:     t.Title,
			Sender:        cmd.Sender,
			Text:          cmd.Text,
			Reply:         cmd.Reply,
			Provenance: bus.Provenance{
				Synthetic:      true,
				CallbackID:     cb.ID,
				OriginChatID:   cmd.OriginChatID,
				OriginChatType: cmd.OriginChatType,
			},
		}
		if ev.Reply != nil {
			r := *ev.Reply
			ev.Reply = &r
		}
		if err := d.publisher.Publish(ctx, ev); err != nil {
			logger.Debugf("routing: replay of %q into %d failed: %v", cmd.Text, t.ChatID, err)
		}
	}

	return replayAck(cmd, targets), nil
}

func (d *Dispatcher) targets(ctx context.Context, chatID, presser, origin int64, text string) ([]Candidate, string) {
	if chatID == AllChats {
		cands, err := d.resolver.Candidates(ctx, Query{
			UserID:         presser,
			InvokingChatID: origin,
			Roles:          rolesFor(d.permissionOf(text)),
			AllChats:       true,
		})
		if err != nil {
			logger.Debugf("routing: expanding all chats for %d: %v", presser, err)
			return nil, AckNoChats
		}
		return cands, ""
	}

	chat, ok := d.resolver.liveChat(ctx, chatID)
	if !ok {
		return nil, AckChatGone
	}
	return []Candidate{{ChatID: chat.ID, Title: chat.DisplayName(), Type: chat.Type}}, ""
}

// confirmAll asks once before a dangerous command fans out to several
// chats. The button carries the all-chats token, so the chat set and the
// presser's roles are checked again when it is pressed.
func (d *Dispatcher) confirmAll(ctx context.Context, origin int64, cmd PendingCommand, n int) (string, error) {
	confirmed := cmd
	confirmed.Text = cmd.Text + " " + ConfirmSentinel
	d.cache.Put(origin, confirmed)

	text := displayCommand(cmd.Text)
	where := fmt.Sprintf("%d chats", n)
	prompt := fmt.Sprintf("Are you sure you want to run %s in %s?", text, where)
	if cmd.Reply != nil && cmd.Reply.User.ID != 0 {
		prompt = fmt.Sprintf("Are you sure you want to run %s on %s in %s?", text, cmd.Reply.User.Name(), where)
	}

	kb := platform.Keyboard{{{
		Label:  confirmLabel,
		Unique: UniqueRoute,
		Data:   strconv.FormatInt(AllChats, 10),
	}}}
	if _, err := d.platform.Send(ctx, origin, prompt, kb); err != nil {
		d.cache.Take(origin)
		return "", err
	}
	return fmt.Sprintf("Confirm %s for %s first", text, where), nil
}

// maxAckCommand keeps acknowledgements under Telegram's 200 character limit.
const maxAckCommand = 64

func displayCommand(text string) string {
	text = strings.TrimSpace(text)
	if fields := strings.Fields(text); len(fields) > 0 && fields[len(fields)-1] == ConfirmSentinel {
		text = stripLastToken(text)
	}
	if utf8.RuneCountInString(text) > maxAckCommand {
		runes := []rune(text)
		text = string(runes[:maxAckCommand-1]) + "…"
	}
	return text
}

func replayAck(cmd PendingCommand, targets []Candidate) string {
	where := targets[0].Title
	if len(targets) > 1 {
		where = fmt.Sprintf("%d chats", len(targets))
	}

	text := displayCommand(cmd.Text)
	if cmd.Reply != nil {
		return fmt.Sprintf("Executing %s on a message in %s", text, where)
	}
	return fmt.Sprintf("Sent %s to %s", text, where)
}
