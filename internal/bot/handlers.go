package bot

import (
	"context"
	"strings"

	"gopkg.in/telebot.v4"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/routing"
)

// registerHandlers connects telebot endpoints to the bus
func (b *Bot) registerHandlers(ctx context.Context) {
	b.api.Handle(telebot.OnText, func(c telebot.Context) error {
		return b.handleMessage(ctx, c)
	})

	b.api.Handle(&telebot.InlineButton{Unique: routing.UniqueRoute}, func(c telebot.Context) error {
		return b.handleCallback(ctx, c)
	})

	b.api.Handle(telebot.OnUserJoined, func(c telebot.Context) error {
		return b.handleUserJoined(ctx, c)
	})

	b.api.Handle(telebot.OnAddedToGroup, func(c telebot.Context) error {
		msg := c.Message()
		if msg == nil || msg.Chat == nil {
			return nil
		}
		logger.Infof("Bot: added to %d (%s)", msg.Chat.ID, msg.Chat.Title)
		return b.store.TrackGroup(msg.Chat.ID, msg.Chat.Title)
	})

	b.api.Handle(telebot.OnMigration, func(c telebot.Context) error {
		return b.handleMigration(c)
	})
}

// eventFromMessage converts an inbound Telegram message into a bus event.
func eventFromMessage(msg *telebot.Message) bus.Event {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	ev := bus.Event{
		ChatID:    msg.Chat.ID,
		ChatType:  chatType(msg.Chat.Type),
		ChatTitle: msg.Chat.Title,
		Sender:    toUser(msg.Sender),
		Text:      text,
		MessageID: msg.ID,
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		ev.Reply = &platform.ReplyContext{
			MessageID: msg.ReplyTo.ID,
			User:      toUser(msg.ReplyTo.Sender),
		}
	}
	return ev
}

// handleMessage publishes a text message
func (b *Bot) handleMessage(ctx context.Context, c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil || msg.Sender == nil {
		return nil
	}

	logger.Debugf("Bot: message from user=%d (@%s) chat=%d len=%d", msg.Sender.ID, msg.Sender.Username, msg.Chat.ID, len(msg.Text))

	// Pipeline failures are reported inside the bus.
	_ = b.bus.Publish(ctx, eventFromMessage(msg))
	return nil
}

// handleCallback replays a routed command and answers the button press
func (b *Bot) handleCallback(ctx context.Context, c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return c.Respond(&telebot.CallbackResponse{Text: routing.AckLostMessage})
	}

	rc := routing.Callback{
		ID:       cb.ID,
		Data:     strings.TrimSpace(cb.Data),
		From:     toUser(cb.Sender),
		Message:  platform.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID},
		ChatType: chatType(cb.Message.Chat.Type),
	}

	var ack string
	err := errorx.HandleWithRecovery(func() error {
		var err error
		ack, err = b.dispatcher.HandleCallback(ctx, rc)
		return err
	})
	if err != nil {
		logger.Errorf("Bot: callback %s failed: %v", cb.ID, err)
		ack = "Something went wrong, please try again."
	}

	return c.Respond(&telebot.CallbackResponse{Text: ack})
}

// handleUserJoined welcomes new members
func (b *Bot) handleUserJoined(ctx context.Context, c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}

	var joined []platform.User
	if len(msg.UsersJoined) > 0 {
		for i := range msg.UsersJoined {
			joined = append(joined, toUser(&msg.UsersJoined[i]))
		}
	} else if msg.UserJoined != nil {
		joined = append(joined, toUser(msg.UserJoined))
	}

	return b.Welcome(ctx, toChat(msg.Chat), joined)
}

// handleMigration moves stored data when a group becomes a supergroup.
// The chat ID changes in that case.
func (b *Bot) handleMigration(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}

	from, to := msg.Chat.ID, msg.MigrateTo
	if to == 0 {
		from, to = msg.MigrateFrom, msg.Chat.ID
	}
	if from == 0 || to == 0 || from == to {
		return nil
	}
	return b.Migrate(from, to)
}
