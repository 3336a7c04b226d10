package bus

import (
	"context"
	"sync"

	"mod-gobot/internal/logger"
)

// Silencer holds the set of groups in which the bot ignores commands from
// non-admins.
type Silencer struct {
	mu     sync.RWMutex
	groups map[int64]bool
}

// NewSilencer creates an empty Silencer.
func NewSilencer() *Silencer {
	return &Silencer{groups: make(map[int64]bool)}
}

// Set silences or unsilences a group and reports whether the state changed.
func (s *Silencer) Set(groupID int64, silenced bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groups[groupID] == silenced {
		return false
	}
	if silenced {
		s.groups[groupID] = true
	} else {
		delete(s.groups, groupID)
	}
	return true
}

// IsSilenced reports whether the group is silenced.
func (s *Silencer) IsSilenced(groupID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[groupID]
}

// Len returns the number of silenced groups.
func (s *Silencer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Silence drops commands from non-admins in silenced groups without a reply.
func Silence(s *Silencer, elev Elevator) Middleware {
	return func(ctx context.Context, req *Request) (Result, error) {
		if !s.IsSilenced(req.Target.ID) {
			return Proceed(), nil
		}
		if elev != nil && elev.IsElevated(req.Event.Sender.ID) {
			return Proceed(), nil
		}
		role, err := req.Role(ctx)
		if err == nil && role.IsAdmin() {
			return Proceed(), nil
		}
		logger.Debugf("bus: /%s by %d ignored, %d is silenced", req.Name, req.Event.Sender.ID, req.Target.ID)
		return Stop(""), nil
	}
}
