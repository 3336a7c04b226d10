package bus

import (
	"context"
	"sync"
	"time"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
)

// Observer sees every published event before command dispatch.
type Observer func(ctx context.Context, ev Event)

// ErrorReporter receives errors that escaped a pipeline and carry no
// user-facing message.
type ErrorReporter func(ctx context.Context, req *Request, err error)

// Options configures a Bus.
type Options struct {
	OnError ErrorReporter
}

// Bus dispatches events to registered commands.
type Bus struct {
	registry *Registry
	platform platform.Platform
	recovery *errorx.Handler

	mu        sync.RWMutex
	onError   ErrorReporter
	observers []Observer
}

// New creates a bus over the registry and platform. Handlers run once;
// wrap p in platform.Retrying to repeat failed platform calls.
func New(registry *Registry, p platform.Platform, opts Options) *Bus {
	recovery := errorx.NewHandler()
	recovery.LogStackTraces = false

	return &Bus{
		registry: registry,
		platform: p,
		recovery: recovery,
		onError:  opts.OnError,
	}
}

// Registry returns the command registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Observe registers fn to see every published event.
func (b *Bus) Observe(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

func (b *Bus) snapshot() (ErrorReporter, []Observer) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.onError, b.observers
}

// Publish runs ev through observers and, when it is a registered command,
// through the command's pipeline. It returns the pipeline's error after
// reporting it.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = ev.ID
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	onError, observers := b.snapshot()
	for _, observe := range observers {
		observe(ctx, ev)
	}

	name, args, ok := ParseCommand(ev.Text, b.platform.Username())
	if !ok {
		return nil
	}
	e, ok := b.registry.lookup(name)
	if !ok {
		logger.Debugf("bus: no command /%s (event %s)", name, ev.ID)
		return nil
	}

	req := &Request{
		Event:    ev,
		Command:  e.cmd,
		Name:     name,
		Args:     args,
		Target:   ev.Chat(),
		Platform: b.platform,
		bus:      b,
	}

	logger.Debugf("bus: /%s in %d by %d (event %s, synthetic=%v)",
		name, ev.ChatID, ev.Sender.ID, ev.ID, ev.Provenance.Synthetic)

	err := b.run(ctx, req, e.pipeline)
	if err != nil {
		b.fail(ctx, req, err, onError)
	}
	return err
}

func (b *Bus) run(ctx context.Context, req *Request, pipeline []Middleware) error {
	for _, mw := range pipeline {
		res, err := mw(ctx, req)
		if err != nil {
			return err
		}
		if res.stop {
			if res.reply != "" {
				return req.Reply(ctx, res.reply)
			}
			return nil
		}
	}

	return b.recovery.HandleWithRecovery(func() error {
		return req.Command.Handler(ctx, req)
	})
}

func (b *Bus) fail(ctx context.Context, req *Request, err error, onError ErrorReporter) {
	if msg, ok := errorx.UserMessage(err); ok {
		if replyErr := req.Reply(ctx, msg); replyErr != nil {
			logger.Warnf("bus: failed to deliver error reply for /%s: %v", req.Name, replyErr)
		}
		return
	}

	logger.Errorf("bus: /%s in %d failed: %v", req.Name, req.Target.ID, err)
	if onError != nil {
		onError(ctx, req, err)
	}
}
