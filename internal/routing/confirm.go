package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
)

// ConfirmSentinel is appended to a dangerous command once the user has
// confirmed it.
const ConfirmSentinel = "--confirmed"

const confirmLabel = "Yes, I am sure"

// stripLastToken removes the last whitespace-delimited token.
func stripLastToken(text string) string {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	i := strings.LastIndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimRightFunc(text[:i], unicode.IsSpace)
}

func hasSentinel(text string) bool {
	fields := strings.Fields(text)
	return len(fields) > 0 && fields[len(fields)-1] == ConfirmSentinel
}

// Confirm holds back dangerous commands until the user presses a
// confirmation button. The confirmed command comes back as a replayed
// event ending in ConfirmSentinel; only then does it proceed, with the
// sentinel removed. A sentinel typed by hand is ignored.
func Confirm(cache *PendingCache) bus.Middleware {
	return func(ctx context.Context, req *bus.Request) (bus.Result, error) {
		if !req.Command.Dangerous {
			return bus.Proceed(), nil
		}

		text := req.Event.Text
		if hasSentinel(text) {
			req.SetText(stripLastToken(text))
			if req.Event.Provenance.Synthetic {
				return bus.Proceed(), nil
			}
			logger.Debugf("routing: ignoring typed confirmation from %d", req.Event.Sender.ID)
		}

		invoking := req.InvokingChatID()
		cache.Put(invoking, PendingCommand{
			OriginChatID:   invoking,
			OriginChatType: req.Event.InvokingChatType(),
			Sender:         req.Event.Sender,
			Text:           req.Event.Text + " " + ConfirmSentinel,
			Reply:          req.Event.Reply,
		})

		kb := platform.Keyboard{{{
			Label:  confirmLabel,
			Unique: UniqueRoute,
			Data:   strconv.FormatInt(req.Target.ID, 10),
		}}}

		prompt := fmt.Sprintf("Are you sure you want to run %s in %s?", req.CommandText(), req.Target.DisplayName())
		if u, ok := req.ReplyUser(); ok {
			prompt = fmt.Sprintf("Are you sure you want to run %s on %s in %s?", req.CommandText(), u.Name(), req.Target.DisplayName())
		}

		if _, err := req.ReplyWithKeyboard(ctx, prompt, kb); err != nil {
			return bus.Result{}, err
		}
		return bus.Stop(""), nil
	}
}
