package bus

import (
	"context"
	"fmt"
	"sync"
)

// Scope says where a command acts.
type Scope int

const (
	// ScopeAny commands act on the chat they were typed in.
	ScopeAny Scope = iota
	// ScopeGroup commands act on a group. Typed in a private chat or a
	// control channel they are resolved to a target group first.
	ScopeGroup
	// ScopeResolve commands are always resolved to a group other than the
	// one they were typed in.
	ScopeResolve
)

// Permission is the role a command requires in its target chat.
type Permission int

const (
	PermAny Permission = iota
	PermAdmin
	PermCreator
	PermSuperuser
)

func (p Permission) String() string {
	switch p {
	case PermAdmin:
		return "admin"
	case PermCreator:
		return "creator"
	case PermSuperuser:
		return "superuser"
	default:
		return "any"
	}
}

// Handler executes a command after every middleware let it through.
type Handler func(ctx context.Context, req *Request) error

// Command describes a registered command and the checks it needs.
type Command struct {
	Name        string
	Usage       string
	Description string
	Scope       Scope
	Permission  Permission
	// Dangerous commands require an explicit confirmation button press.
	Dangerous bool
	// NeedsReply commands act on the author of the replied-to message.
	NeedsReply bool
	// Audit commands are recorded in the target group's audit log.
	Audit bool
	// Hidden commands are left out of /help.
	Hidden  bool
	Handler Handler
}

type entry struct {
	cmd      Command
	pipeline []Middleware
}

// Registry maps command names to their pipelines. Each pipeline is the
// registry-wide middleware followed by the command's own, composed once
// at registration.
type Registry struct {
	mu       sync.RWMutex
	global   []Middleware
	commands map[string]*entry
	order    []string
}

// NewRegistry creates a registry whose commands all run through global.
func NewRegistry(global ...Middleware) *Registry {
	return &Registry{
		global:   global,
		commands: make(map[string]*entry),
	}
}

// Register adds a command. Names must be unique.
func (r *Registry) Register(cmd Command, extra ...Middleware) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name is empty")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command /%s has no handler", cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command /%s already registered", cmd.Name)
	}

	pipeline := make([]Middleware, 0, len(r.global)+len(extra))
	pipeline = append(pipeline, r.global...)
	pipeline = append(pipeline, extra...)

	r.commands[cmd.Name] = &entry{cmd: cmd, pipeline: pipeline}
	r.order = append(r.order, cmd.Name)
	return nil
}

// MustRegister is Register for static command tables.
func (r *Registry) MustRegister(cmd Command, extra ...Middleware) {
	if err := r.Register(cmd, extra...); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[name]
	return e, ok
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Command{}, false
	}
	return e.cmd, true
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		cmds = append(cmds, r.commands[name].cmd)
	}
	return cmds
}
