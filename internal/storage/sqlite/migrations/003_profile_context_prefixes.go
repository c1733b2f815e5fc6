package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateProfileContextPrefixes adds the context_prefixes column to
// deployment_profiles so profiles can rename context directories (for
// example memories/ to rules/) during path rewriting.
func MigrateProfileContextPrefixes(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('deployment_profiles')
		WHERE name = 'context_prefixes'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`ALTER TABLE deployment_profiles ADD COLUMN context_prefixes TEXT NOT NULL DEFAULT '[]'`)
		if err != nil {
			return fmt.Errorf("failed to add context_prefixes column: %w", err)
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to check context_prefixes column: %w", err)
	}

	return nil
}
