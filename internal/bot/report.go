package bot

import (
	"context"
	"errors"
	"fmt"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
)

// reportError handles failures that carry no user-facing message. Users
// the bot cannot write to get a START link; anything else is reported to
// the creator of the affected group with secrets masked, or to the
// invoking chat when no creator can be reached.
func (b *Bot) reportError(ctx context.Context, req *bus.Request, err error) {
	sender := req.Event.Sender

	if errors.Is(err, platform.ErrCannotMessageUser) {
		text := fmt.Sprintf("%s, I don't have permission to PM you. Please click the following link and then press START: %s",
			mention(sender), b.rulesLink(req.Target.ID))
		if _, sendErr := b.platform.Send(ctx, req.InvokingChatID(), text, nil); sendErr != nil {
			logger.Warnf("Bot: could not post START link in %d: %v", req.InvokingChatID(), sendErr)
		}
		return
	}

	detail := b.redactor.Redact(err.Error())

	told := req.Target.Type.IsGroup() && b.notifyCreator(ctx, req.Target.ID,
		fmt.Sprintf("Oh no, something went wrong in %s!\n\nCommand: /%s\nError message: %s",
			req.Target.DisplayName(), req.Name, detail))

	// Without a creator to tell, the chat itself gets the details.
	reply := fmt.Sprintf("Sorry, /%s failed: %s", req.Name, detail)
	if told {
		reply = fmt.Sprintf("Sorry, /%s failed. The group owner has been told.", req.Name)
	}
	if err := req.Reply(ctx, reply); err != nil {
		logger.Debugf("Bot: could not report failure of /%s to %d: %v", req.Name, req.InvokingChatID(), err)
	}
}
