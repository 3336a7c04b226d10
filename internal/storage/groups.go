package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
)

// Group is the persisted configuration of a moderated chat.
type Group struct {
	ID               int64
	Title            string
	ControlChannelID int64 // 0 when the group is not linked to a control channel
	WelcomeEnabled   bool
	WelcomeMessage   string
	Description      string
	Rules            string
	RelatedChats     []int64
	AuditLog         []AuditEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const groupColumns = `group_id, title, control_channel_id, welcome_enabled, welcome_message,
	description, rules, related_chats, audit_log, created_at, updated_at`

// nextSeq numbers new records in the order the bot first saw them. group_id
// is the rowid, so it cannot serve as insertion order.
const nextSeq = `(SELECT COALESCE(MAX(seq), 0) + 1 FROM groups)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*Group, error) {
	var (
		g       Group
		control sql.NullInt64
		related string
		audit   string
	)
	if err := row.Scan(&g.ID, &g.Title, &control, &g.WelcomeEnabled, &g.WelcomeMessage,
		&g.Description, &g.Rules, &related, &audit, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.ControlChannelID = control.Int64

	if err := json.Unmarshal([]byte(related), &g.RelatedChats); err != nil {
		return nil, fmt.Errorf("decode related chats of %d: %w", g.ID, err)
	}
	if err := json.Unmarshal([]byte(audit), &g.AuditLog); err != nil {
		return nil, fmt.Errorf("decode audit log of %d: %w", g.ID, err)
	}
	return &g, nil
}

func (s *Store) queryGroups(query string, args ...any) ([]Group, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// GetGroup returns the record for groupID or ErrGroupNotFound.
func (s *Store) GetGroup(groupID int64) (*Group, error) {
	row := s.db.QueryRow("SELECT "+groupColumns+" FROM groups WHERE group_id = ?", groupID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	return g, err
}

// TrackGroup records that the bot has seen groupID, refreshing its title.
// Existing settings are left untouched.
func (s *Store) TrackGroup(groupID int64, title string) error {
	_, err := s.db.Exec(
		`INSERT INTO groups (group_id, title, seq) VALUES (?, ?, `+nextSeq+`)
		ON CONFLICT(group_id) DO UPDATE SET title = excluded.title, updated_at = CURRENT_TIMESTAMP
		WHERE groups.title != excluded.title`,
		groupID, title,
	)
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertGroup(db execer, g *Group) error {
	g.AuditLog = truncateAudit(g.AuditLog)

	related, err := json.Marshal(g.RelatedChats)
	if err != nil {
		return fmt.Errorf("encode related chats: %w", err)
	}
	audit, err := json.Marshal(g.AuditLog)
	if err != nil {
		return fmt.Errorf("encode audit log: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO groups (group_id, title, control_channel_id, welcome_enabled, welcome_message,
			description, rules, related_chats, audit_log, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, `+nextSeq+`)
		ON CONFLICT(group_id) DO UPDATE SET
			title = excluded.title,
			control_channel_id = excluded.control_channel_id,
			welcome_enabled = excluded.welcome_enabled,
			welcome_message = excluded.welcome_message,
			description = excluded.description,
			rules = excluded.rules,
			related_chats = excluded.related_chats,
			audit_log = excluded.audit_log,
			updated_at = CURRENT_TIMESTAMP`,
		g.ID, g.Title, nullableID(g.ControlChannelID), g.WelcomeEnabled, g.WelcomeMessage,
		g.Description, g.Rules, string(related), string(audit),
	)
	return err
}

// SaveGroup writes every field of g. The audit log is truncated to the
// most recent AuditLogSize entries before it is stored.
func (s *Store) SaveGroup(g *Group) error {
	return upsertGroup(s.db, g)
}

// UpdateGroup loads groupID, applies fn and saves the result in one
// transaction. A missing record starts from defaults.
func (s *Store) UpdateGroup(groupID int64, fn func(g *Group) error) (*Group, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow("SELECT "+groupColumns+" FROM groups WHERE group_id = ?", groupID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		g = &Group{ID: groupID, WelcomeEnabled: true}
	} else if err != nil {
		return nil, err
	}

	if err := fn(g); err != nil {
		return nil, err
	}
	g.ID = groupID

	if err := upsertGroup(tx, g); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup forgets a group and its warnings.
func (s *Store) DeleteGroup(groupID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM warnings WHERE group_id = ?", groupID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM groups WHERE group_id = ?", groupID); err != nil {
		return err
	}
	// Groups controlled from the deleted chat lose their link.
	if _, err := tx.Exec("UPDATE groups SET control_channel_id = NULL WHERE control_channel_id = ?", groupID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListGroups returns every known group in the order it was first tracked.
func (s *Store) ListGroups() ([]Group, error) {
	return s.queryGroups("SELECT " + groupColumns + " FROM groups ORDER BY seq, group_id")
}

// ListGroupsByControlChannel returns the groups linked to channelID, oldest
// first.
func (s *Store) ListGroupsByControlChannel(channelID int64) ([]Group, error) {
	return s.queryGroups("SELECT "+groupColumns+" FROM groups WHERE control_channel_id = ? ORDER BY seq, group_id", channelID)
}

// IsControlChannel reports whether at least one group links to chatID.
func (s *Store) IsControlChannel(chatID int64) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM groups WHERE control_channel_id = ?", chatID).Scan(&n)
	return n > 0, err
}

// SetControlChannel links groupID to channelID. A zero channelID unlinks it.
func (s *Store) SetControlChannel(groupID, channelID int64) error {
	res, err := s.db.Exec(
		"UPDATE groups SET control_channel_id = ?, updated_at = CURRENT_TIMESTAMP WHERE group_id = ?",
		nullableID(channelID), groupID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// CountGroups returns the number of known groups.
func (s *Store) CountGroups() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM groups").Scan(&n)
	return n, err
}

// MigrateGroup moves a group's record and warnings to a new chat id, as
// happens when a group is upgraded to a supergroup.
func (s *Store) MigrateGroup(fromID, toID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM groups WHERE group_id = ?", fromID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		// Messages in the new chat may already have tracked a bare record
		// for it; the old record carries the settings.
		if _, err := tx.Exec("DELETE FROM groups WHERE group_id = ?", toID); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE groups SET group_id = ?, updated_at = CURRENT_TIMESTAMP WHERE group_id = ?", toID, fromID); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("UPDATE warnings SET group_id = ? WHERE group_id = ?", toID, fromID); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE groups SET control_channel_id = ? WHERE control_channel_id = ?", toID, fromID); err != nil {
		return err
	}
	return tx.Commit()
}
