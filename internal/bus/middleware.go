package bus

import (
	"context"
	"fmt"
	"time"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/storage"
)

// Result is a middleware's verdict.
type Result struct {
	stop  bool
	reply string
}

// Proceed lets the request continue down the pipeline.
func Proceed() Result {
	return Result{}
}

// Stop ends the pipeline. A non-empty reply is sent to the invoking chat.
func Stop(reply string) Result {
	return Result{stop: true, reply: reply}
}

// Stopped reports whether the pipeline ends here.
func (r Result) Stopped() bool {
	return r.stop
}

// Reply is the text sent when the pipeline stops.
func (r Result) Reply() string {
	return r.reply
}

// Middleware inspects or adjusts a request before its handler runs.
// An error ends the pipeline and is reported like a handler error.
type Middleware func(ctx context.Context, req *Request) (Result, error)

// Limiter is a per-chat request budget.
type Limiter interface {
	Allow(chatID int64) bool
	RemainingCooldown(chatID int64) time.Duration
}

// RateLimit drops commands from chats that exceeded their budget.
// Synthetic replays were already counted when the user typed them.
func RateLimit(l Limiter) Middleware {
	return func(ctx context.Context, req *Request) (Result, error) {
		if req.Event.Provenance.Synthetic {
			return Proceed(), nil
		}
		chatID := req.InvokingChatID()
		if l.Allow(chatID) {
			return Proceed(), nil
		}
		wait := l.RemainingCooldown(chatID).Round(time.Second)
		logger.Debugf("bus: rate limited chat %d for %s", chatID, wait)
		return Stop(fmt.Sprintf("Slow down! Try again in %s.", wait)), nil
	}
}

// RequireReply rejects commands that need a replied-to message but have none.
func RequireReply() Middleware {
	return func(ctx context.Context, req *Request) (Result, error) {
		if !req.Command.NeedsReply {
			return Proceed(), nil
		}
		if _, ok := req.ReplyUser(); !ok {
			return Result{}, errorx.NewUserError(
				fmt.Sprintf("Reply to a message to use /%s.", req.Name), nil)
		}
		return Proceed(), nil
	}
}

// Elevator answers privilege questions about a user.
type Elevator interface {
	IsSuperuser(userID int64) bool
	IsElevated(userID int64) bool
}

// RequirePermission checks the sender's role in the target chat against
// the command's Permission. Elevated superusers pass every role check.
func RequirePermission(elev Elevator) Middleware {
	return func(ctx context.Context, req *Request) (Result, error) {
		sender := req.Event.Sender.ID
		perm := req.Command.Permission

		switch perm {
		case PermAny:
			return Proceed(), nil
		case PermSuperuser:
			if elev.IsSuperuser(sender) {
				return Proceed(), nil
			}
			return Result{}, errorx.Denied("Only bot superusers can do that.")
		}

		if elev.IsElevated(sender) {
			logger.Infof("bus: /%s by %d allowed through sudo in %d", req.Name, sender, req.Target.ID)
			return Proceed(), nil
		}

		role, err := req.Role(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("check role of %d in %d: %w", sender, req.Target.ID, err)
		}

		switch {
		case perm == PermCreator && role == platform.RoleCreator:
			return Proceed(), nil
		case perm == PermAdmin && role.IsAdmin():
			return Proceed(), nil
		case perm == PermCreator:
			return Result{}, errorx.Denied(fmt.Sprintf("Only the creator of %s can do that.", req.Target.DisplayName()))
		default:
			return Result{}, errorx.Denied(fmt.Sprintf("You must be an admin of %s to do that.", req.Target.DisplayName()))
		}
	}
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	AppendAudit(groupID int64, entry storage.AuditEntry) error
}

// Audit records commands flagged for auditing in the target group's log.
// A failed write is logged and does not block the command.
func Audit(rec AuditRecorder) Middleware {
	return func(ctx context.Context, req *Request) (Result, error) {
		if !req.Command.Audit || !req.Target.Type.IsGroup() {
			return Proceed(), nil
		}

		entry := storage.AuditEntry{
			Timestamp: time.Now().UTC(),
			UserID:    req.Event.Sender.ID,
			UserName:  req.Event.Sender.Name(),
			Command:   req.CommandText(),
			Synthetic: req.Event.Provenance.Synthetic,
		}
		if u, ok := req.ReplyUser(); ok {
			entry.InReplyToID = u.ID
			entry.InReplyToName = u.Name()
		}

		if err := rec.AppendAudit(req.Target.ID, entry); err != nil {
			logger.Warnf("bus: audit write for %d failed: %v", req.Target.ID, err)
		}
		return Proceed(), nil
	}
}
