package database

import (
	"database/sql"
	"fmt"
)

// SaveRuleSnapshot replaces the stored rule document wholesale
func SaveRuleSnapshot(document []byte) error {
	query := `
	INSERT INTO rule_snapshots (id, document, updated_at)
	VALUES (1, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at;`

	if _, err := DB.Exec(query, string(document)); err != nil {
		return fmt.Errorf("failed to save rule snapshot: %w", err)
	}
	return nil
}

// LoadRuleSnapshot returns the stored rule document; found is false when none was saved yet
func LoadRuleSnapshot() (document []byte, found bool, err error) {
	var raw string
	err = DB.QueryRow(`SELECT document FROM rule_snapshots WHERE id = 1;`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to load rule snapshot: %w", err)
	}
	return []byte(raw), true, nil
}
