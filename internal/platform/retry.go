package platform

import (
	"context"
	"sync"
	"time"

	"mod-gobot/internal/errorx"
)

// Retrying repeats individual platform calls that fail with a transient
// error. Handlers run once; only the call that hit the flood limit or a
// server error is sent again, so work already committed is not redone.
type Retrying struct {
	inner Platform

	mu     sync.RWMutex
	policy errorx.Policy
}

var _ Platform = (*Retrying)(nil)

// NewRetrying wraps p with policy.
func NewRetrying(p Platform, policy errorx.Policy) *Retrying {
	return &Retrying{inner: p, policy: policy}
}

// SetPolicy replaces the retry policy for later calls.
func (r *Retrying) SetPolicy(p errorx.Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = p
}

// Policy returns the current retry policy.
func (r *Retrying) Policy() errorx.Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// Unwrap returns the wrapped platform.
func (r *Retrying) Unwrap() Platform {
	return r.inner
}

func (r *Retrying) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return errorx.RetryTransient(ctx, r.Policy(), fn)
}

func (r *Retrying) Chat(ctx context.Context, chatID int64) (chat Chat, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		chat, err = r.inner.Chat(ctx, chatID)
		return err
	})
	return chat, err
}

func (r *Retrying) Role(ctx context.Context, chatID, userID int64) (role Role, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		role, err = r.inner.Role(ctx, chatID, userID)
		return err
	})
	return role, err
}

func (r *Retrying) Admins(ctx context.Context, chatID int64) (members []Member, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		members, err = r.inner.Admins(ctx, chatID)
		return err
	})
	return members, err
}

func (r *Retrying) Send(ctx context.Context, chatID int64, text string, kb Keyboard) (ref MessageRef, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		ref, err = r.inner.Send(ctx, chatID, text, kb)
		return err
	})
	return ref, err
}

func (r *Retrying) Delete(ctx context.Context, ref MessageRef) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.inner.Delete(ctx, ref)
	})
}

func (r *Retrying) Kick(ctx context.Context, chatID, userID int64) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.inner.Kick(ctx, chatID, userID)
	})
}

func (r *Retrying) Ban(ctx context.Context, chatID, userID int64) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.inner.Ban(ctx, chatID, userID)
	})
}

func (r *Retrying) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.inner.Restrict(ctx, chatID, userID, until)
	})
}

func (r *Retrying) Unrestrict(ctx context.Context, chatID, userID int64) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.inner.Unrestrict(ctx, chatID, userID)
	})
}

func (r *Retrying) InviteLink(ctx context.Context, chatID int64) (link string, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		link, err = r.inner.InviteLink(ctx, chatID)
		return err
	})
	return link, err
}

func (r *Retrying) RevokeInviteLink(ctx context.Context, chatID int64) (link string, err error) {
	err = r.do(ctx, func(ctx context.Context) error {
		link, err = r.inner.RevokeInviteLink(ctx, chatID)
		return err
	})
	return link, err
}

func (r *Retrying) Username() string {
	return r.inner.Username()
}
