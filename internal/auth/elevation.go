// Package auth tracks which users may act with elevated privilege.
package auth

import (
	"sync"
	"time"

	"mod-gobot/internal/errorx"
)

// Elevation grants configured superusers a time-boxed privilege that
// bypasses per-chat role checks when targeting all chats.
type Elevation struct {
	mu         sync.RWMutex
	superusers map[int64]bool
	duration   time.Duration
	grants     map[int64]time.Time
	now        func() time.Time
}

// NewElevation creates an Elevation for the given superusers.
func NewElevation(superusers []int64, duration time.Duration) *Elevation {
	e := &Elevation{
		grants: make(map[int64]time.Time),
		now:    time.Now,
	}
	e.Configure(superusers, duration)
	return e
}

// Configure replaces the superuser list and grant duration. Grants held
// by users no longer listed are revoked.
func (e *Elevation) Configure(superusers []int64, duration time.Duration) {
	set := make(map[int64]bool, len(superusers))
	for _, id := range superusers {
		set[id] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.superusers = set
	e.duration = duration
	for id := range e.grants {
		if !set[id] {
			delete(e.grants, id)
		}
	}
}

// IsSuperuser reports whether userID may request elevation.
func (e *Elevation) IsSuperuser(userID int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.superusers[userID]
}

// Grant elevates userID until the returned time.
func (e *Elevation) Grant(userID int64) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.superusers[userID] {
		return time.Time{}, errorx.Denied("You are not allowed to use sudo.")
	}

	until := e.now().Add(e.duration)
	e.grants[userID] = until
	return until, nil
}

// Revoke drops any elevation held by userID.
func (e *Elevation) Revoke(userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, userID)
}

// IsElevated reports whether userID currently holds elevation.
func (e *Elevation) IsElevated(userID int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	until, ok := e.grants[userID]
	return ok && e.now().Before(until)
}

// Active returns the number of unexpired grants.
func (e *Elevation) Active() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	n := 0
	for _, until := range e.grants {
		if now.Before(until) {
			n++
		}
	}
	return n
}

// Prune removes expired grants and returns how many were removed.
func (e *Elevation) Prune() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed := 0
	for id, until := range e.grants {
		if !now.Before(until) {
			delete(e.grants, id)
			removed++
		}
	}
	return removed
}
