package storage

import "time"

// Warning is a moderator warning issued to a user in a group.
type Warning struct {
	ID           int64
	GroupID      int64
	UserID       int64
	UserName     string
	Reason       string
	WarnedBy     int64
	WarnedByName string
	CreatedAt    time.Time
}

// AddWarning records a warning and returns its id.
func (s *Store) AddWarning(w Warning) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO warnings (group_id, user_id, user_name, reason, warned_by, warned_by_name) VALUES (?, ?, ?, ?, ?, ?)",
		w.GroupID, w.UserID, w.UserName, w.Reason, w.WarnedBy, w.WarnedByName,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Warnings returns a user's warnings in a group, oldest first.
func (s *Store) Warnings(groupID, userID int64) ([]Warning, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, user_id, user_name, reason, warned_by, warned_by_name, created_at
		FROM warnings WHERE group_id = ? AND user_id = ? ORDER BY id`,
		groupID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.ID, &w.GroupID, &w.UserID, &w.UserName, &w.Reason,
			&w.WarnedBy, &w.WarnedByName, &w.CreatedAt); err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ClearWarnings removes a user's warnings in a group and returns how many
// were removed.
func (s *Store) ClearWarnings(groupID, userID int64) (int64, error) {
	result, err := s.db.Exec("DELETE FROM warnings WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
