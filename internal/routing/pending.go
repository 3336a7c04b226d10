// Package routing resolves group commands typed in a private chat or a
// control channel to their target groups. It asks the user to pick a
// target with inline buttons, remembers the command until a button is
// pressed and replays it into the chosen chats.
package routing

import (
	"fmt"
	"sync"
	"time"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/platform"
)

// ErrCacheMiss is returned when no command is cached for a chat.
var ErrCacheMiss = fmt.Errorf("routing: %w", errorx.ErrCacheMiss)

// PendingCommand is a command waiting for its target to be chosen.
type PendingCommand struct {
	OriginChatID   int64
	OriginChatType platform.ChatType
	Sender         platform.User
	Text           string
	Reply          *platform.ReplyContext
	CachedAt       time.Time
}

// PendingCache holds at most one pending command per invoking chat.
// Entries live until taken or until the process exits.
type PendingCache struct {
	mu    sync.Mutex
	items map[int64]PendingCommand
	now   func() time.Time
}

// NewPendingCache creates an empty cache.
func NewPendingCache() *PendingCache {
	return &PendingCache{
		items: make(map[int64]PendingCommand),
		now:   time.Now,
	}
}

// Put stores cmd under key, replacing any earlier entry.
func (c *PendingCache) Put(key int64, cmd PendingCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cmd.CachedAt.IsZero() {
		cmd.CachedAt = c.now()
	}
	if cmd.Reply != nil {
		r := *cmd.Reply
		cmd.Reply = &r
	}
	c.items[key] = cmd
}

// Take removes and returns the entry under key.
func (c *PendingCache) Take(key int64) (PendingCommand, error) {
	return c.TakeIf(key, nil)
}

// TakeIf removes and returns the entry under key when accept approves it.
// A rejected entry stays cached and errNotYours is returned with it.
func (c *PendingCache) TakeIf(key int64, accept func(PendingCommand) bool) (PendingCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok := c.items[key]
	if !ok {
		return PendingCommand{}, ErrCacheMiss
	}
	if accept != nil && !accept(cmd) {
		return cmd, errNotYours
	}
	delete(c.items, key)
	return cmd, nil
}

// Len returns the number of pending commands.
func (c *PendingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
