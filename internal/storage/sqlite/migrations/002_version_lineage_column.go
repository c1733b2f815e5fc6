package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateVersionLineageColumn adds the version_lineage column to
// artifact_versions. Rows that predate the column keep an empty lineage;
// readers rebuild a two-element chain from parent_hash when they see one,
// so no ancestry walk is needed here.
func MigrateVersionLineageColumn(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('artifact_versions')
		WHERE name = 'version_lineage'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`ALTER TABLE artifact_versions ADD COLUMN version_lineage TEXT NOT NULL DEFAULT '[]'`)
		if err != nil {
			return fmt.Errorf("failed to add version_lineage column: %w", err)
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to check version_lineage column: %w", err)
	}

	return nil
}
