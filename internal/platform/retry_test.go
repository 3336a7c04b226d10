package platform_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/platform/platformtest"
)

var den = platform.Chat{ID: -1001, Type: platform.ChatSuperGroup, Title: "Den"}

func TestRetryingRepeatsTransientSend(t *testing.T) {
	fake := platformtest.New("modbot")
	fake.AddChat(den)
	fake.FailSendOnce(den.ID, errorx.Transient(errors.New("too many requests")))

	p := platform.NewRetrying(fake, errorx.Policy{Attempts: 3, Backoff: time.Millisecond})
	ref, err := p.Send(context.Background(), den.ID, "hello", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if ref.ChatID != den.ID {
		t.Errorf("ref = %+v", ref)
	}
	if sent := fake.SentTo(den.ID); len(sent) != 1 || sent[0].Text != "hello" {
		t.Errorf("sent = %+v, want one hello", sent)
	}
}

func TestRetryingGivesUp(t *testing.T) {
	tests := []struct {
		name  string
		errs  []error
		sends int
	}{
		{"unclassified is final", []error{errors.New("message is empty")}, 0},
		{"permanent is final", []error{errorx.Permanent(platform.ErrCannotMessageUser)}, 0},
		{"budget exhausted", []error{
			errorx.Transient(errors.New("502")),
			errorx.Transient(errors.New("502")),
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := platformtest.New("modbot")
			fake.AddChat(den)
			for _, err := range tt.errs {
				fake.FailSendOnce(den.ID, err)
			}

			p := platform.NewRetrying(fake, errorx.Policy{Attempts: 2, Backoff: time.Millisecond})
			if _, err := p.Send(context.Background(), den.ID, "hello", nil); err == nil {
				t.Fatal("Send() should fail")
			}
			if got := len(fake.SentTo(den.ID)); got != tt.sends {
				t.Errorf("sent %d messages, want %d", got, tt.sends)
			}
		})
	}
}

func TestRetryingPolicyCanChange(t *testing.T) {
	fake := platformtest.New("modbot")
	fake.AddChat(den)
	p := platform.NewRetrying(fake, errorx.Policy{Attempts: 1})

	fake.FailSendOnce(den.ID, errorx.Transient(errors.New("flood")))
	if _, err := p.Send(context.Background(), den.ID, "first", nil); err == nil {
		t.Fatal("one attempt should not survive a transient failure")
	}

	p.SetPolicy(errorx.Policy{Attempts: 2, Backoff: time.Millisecond})
	fake.FailSendOnce(den.ID, errorx.Transient(errors.New("flood")))
	if _, err := p.Send(context.Background(), den.ID, "second", nil); err != nil {
		t.Fatalf("Send() after SetPolicy error = %v", err)
	}
	if p.Unwrap() != platform.Platform(fake) {
		t.Error("Unwrap() should return the wrapped platform")
	}
}
