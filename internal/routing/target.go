package routing

import (
	"context"
	"errors"
	"fmt"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/platform"
)

// Target decides whether a group command can run where it was typed or
// must first be resolved to a group. Replayed events are already
// addressed to their target and pass straight through.
func Target(d *Dispatcher) bus.Middleware {
	return func(ctx context.Context, req *bus.Request) (bus.Result, error) {
		if req.Command.Scope == bus.ScopeAny || req.Event.Provenance.Synthetic {
			return bus.Proceed(), nil
		}

		suspend := req.Command.Scope == bus.ScopeResolve || req.Event.ChatType == platform.ChatPrivate
		if !suspend {
			control, err := d.resolver.IsControlChannel(req.Event.ChatID)
			if err != nil {
				return bus.Result{}, err
			}
			suspend = control
		}
		if !suspend {
			return bus.Proceed(), nil
		}

		err := d.Suspend(ctx, req)
		if errors.Is(err, ErrResolutionEmpty) {
			return bus.Stop(fmt.Sprintf("I couldn't find any chats where you can use /%s.", req.Name)), nil
		}
		if err != nil {
			return bus.Result{}, err
		}
		return bus.Stop(""), nil
	}
}
