package routing

import (
	"context"
	"errors"
	"fmt"

	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/storage"
)

// ErrResolutionEmpty is returned when no chat qualifies as a target.
var ErrResolutionEmpty = fmt.Errorf("routing: %w", errorx.ErrResolutionEmpty)

// GroupStore is the part of the store the resolver reads and prunes.
type GroupStore interface {
	ListGroups() ([]storage.Group, error)
	ListGroupsByControlChannel(channelID int64) ([]storage.Group, error)
	IsControlChannel(chatID int64) (bool, error)
	DeleteGroup(groupID int64) error
}

// ElevationChecker reports whether a user currently holds elevated privilege.
type ElevationChecker interface {
	IsElevated(userID int64) bool
}

// RoleFilter lists the roles a user must hold in a candidate chat.
type RoleFilter []platform.Role

var (
	// DefaultRoles admits anyone currently in the chat with full membership.
	DefaultRoles = RoleFilter{platform.RoleCreator, platform.RoleAdmin, platform.RoleMember}
	// AdminRoles admits only those who can moderate the chat.
	AdminRoles = RoleFilter{platform.RoleCreator, platform.RoleAdmin}
)

// Allows reports whether role passes the filter.
func (f RoleFilter) Allows(role platform.Role) bool {
	for _, r := range f {
		if r == role {
			return true
		}
	}
	return false
}

// Candidate is a chat the user may direct a command to.
type Candidate struct {
	ChatID int64
	Title  string
	Type   platform.ChatType
	Role   platform.Role
}

// Query describes one resolution request.
type Query struct {
	UserID         int64
	InvokingChatID int64
	// Roles defaults to DefaultRoles.
	Roles RoleFilter
	// AllChats is set when expanding the all-chats button.
	AllChats bool
}

// Resolver computes candidate target chats from the stored groups and
// live chat metadata. Groups the bot can no longer see are forgotten.
type Resolver struct {
	store    GroupStore
	platform platform.Platform
	elev     ElevationChecker
}

// NewResolver creates a Resolver. elev may be nil.
func NewResolver(store GroupStore, p platform.Platform, elev ElevationChecker) *Resolver {
	return &Resolver{store: store, platform: p, elev: elev}
}

// IsControlChannel reports whether groups link to chatID.
func (r *Resolver) IsControlChannel(chatID int64) (bool, error) {
	return r.store.IsControlChannel(chatID)
}

// Candidates returns the chats that qualify for q, in store order.
func (r *Resolver) Candidates(ctx context.Context, q Query) ([]Candidate, error) {
	roles := q.Roles
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	bypassRoles := q.AllChats && r.elev != nil && r.elev.IsElevated(q.UserID)

	control, err := r.store.IsControlChannel(q.InvokingChatID)
	if err != nil {
		return nil, fmt.Errorf("check control channel %d: %w", q.InvokingChatID, err)
	}

	var groups []storage.Group
	if control {
		groups, err = r.store.ListGroupsByControlChannel(q.InvokingChatID)
	} else {
		groups, err = r.store.ListGroups()
	}
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var candidates []Candidate
	for _, g := range groups {
		if g.ID == q.InvokingChatID {
			continue
		}

		chat, ok := r.liveChat(ctx, g.ID)
		if !ok {
			continue
		}

		cand := Candidate{ChatID: chat.ID, Title: chat.DisplayName(), Type: chat.Type}
		if bypassRoles {
			candidates = append(candidates, cand)
			continue
		}

		role, err := r.platform.Role(ctx, g.ID, q.UserID)
		if err != nil {
			logger.Debugf("routing: role of %d in %d unavailable: %v", q.UserID, g.ID, err)
			continue
		}
		if !roles.Allows(role) {
			continue
		}
		cand.Role = role
		candidates = append(candidates, cand)
	}

	if len(candidates) == 0 {
		return nil, ErrResolutionEmpty
	}
	return candidates, nil
}

// liveChat fetches chat metadata. Chats that disappeared or turned into a
// private chat are deleted from the store; other errors only skip the chat.
func (r *Resolver) liveChat(ctx context.Context, groupID int64) (platform.Chat, bool) {
	chat, err := r.platform.Chat(ctx, groupID)
	switch {
	case errors.Is(err, platform.ErrChatNotFound):
		r.forget(groupID, "chat not found")
		return platform.Chat{}, false
	case err != nil:
		logger.Debugf("routing: metadata for %d unavailable: %v", groupID, err)
		return platform.Chat{}, false
	case chat.Type == platform.ChatPrivate:
		r.forget(groupID, "chat is private")
		return platform.Chat{}, false
	}
	return chat, true
}

func (r *Resolver) forget(groupID int64, reason string) {
	if err := r.store.DeleteGroup(groupID); err != nil {
		logger.Warnf("routing: failed to forget group %d (%s): %v", groupID, reason, err)
		return
	}
	logger.Infof("routing: forgot group %d: %s", groupID, reason)
}

// Sweep checks every stored group and forgets those the bot can no longer
// reach. It returns the number of groups still known.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	groups, err := r.store.ListGroups()
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	alive := 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return alive, err
		}
		if _, ok := r.liveChat(ctx, g.ID); ok {
			alive++
		}
	}
	return alive, nil
}
