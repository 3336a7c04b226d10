package storage

import "time"

// AuditLogSize is the number of audit entries kept per group.
const AuditLogSize = 25

// AuditEntry records one admin action taken in a group.
type AuditEntry struct {
	Timestamp     time.Time `json:"ts"`
	UserID        int64     `json:"user_id"`
	UserName      string    `json:"user_name"`
	Command       string    `json:"command"`
	InReplyToID   int64     `json:"reply_user_id,omitzero"`
	InReplyToName string    `json:"reply_user_name,omitempty"`
	Synthetic     bool      `json:"synthetic,omitzero"`
}

func truncateAudit(entries []AuditEntry) []AuditEntry {
	if len(entries) <= AuditLogSize {
		return entries
	}
	kept := make([]AuditEntry, AuditLogSize)
	copy(kept, entries[len(entries)-AuditLogSize:])
	return kept
}

// AppendAudit adds an entry to the group's audit log, creating the group
// record if needed. Oldest entries are evicted first.
func (s *Store) AppendAudit(groupID int64, entry AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.UpdateGroup(groupID, func(g *Group) error {
		g.AuditLog = append(g.AuditLog, entry)
		return nil
	})
	return err
}

// AuditLog returns the group's audit entries, oldest first.
func (s *Store) AuditLog(groupID int64) ([]AuditEntry, error) {
	g, err := s.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	return g.AuditLog, nil
}
