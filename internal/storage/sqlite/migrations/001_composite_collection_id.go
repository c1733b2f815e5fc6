package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateCompositeCollectionID adds collection_id to the composite tables.
// Early databases tracked composites without recording which collection
// imported them; the parent's collection is backfilled from its first
// membership row.
func MigrateCompositeCollectionID(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('composite_artifacts')
		WHERE name = 'collection_id'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`ALTER TABLE composite_artifacts ADD COLUMN collection_id TEXT NOT NULL DEFAULT ''`)
		if err != nil {
			return fmt.Errorf("failed to add collection_id to composite_artifacts: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check composite_artifacts.collection_id: %w", err)
	}

	err = db.QueryRow(`
		SELECT name FROM pragma_table_info('composite_memberships')
		WHERE name = 'collection_id'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`ALTER TABLE composite_memberships ADD COLUMN collection_id TEXT NOT NULL DEFAULT ''`)
		if err != nil {
			return fmt.Errorf("failed to add collection_id to composite_memberships: %w", err)
		}

		// Use SAVEPOINT for atomicity (we're already inside an EXCLUSIVE
		// transaction from RunMigrations). SQLite doesn't support nested
		// transactions but SAVEPOINTs work inside transactions.
		_, err = db.Exec(`SAVEPOINT composite_collection_backfill`)
		if err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}
		savepointReleased := false
		defer func() {
			if !savepointReleased {
				_, _ = db.Exec(`ROLLBACK TO SAVEPOINT composite_collection_backfill`)
			}
		}()

		_, err = db.Exec(`
			UPDATE composite_artifacts SET collection_id = COALESCE((
				SELECT ca.collection_id FROM composite_memberships cm
				JOIN collection_artifacts ca ON ca.artifact_uuid = cm.child_uuid
				WHERE cm.composite_id = composite_artifacts.id
				ORDER BY cm.position LIMIT 1
			), '')
			WHERE collection_id = ''
		`)
		if err != nil {
			return fmt.Errorf("failed to backfill composite collection ids: %w", err)
		}

		_, err = db.Exec(`
			UPDATE composite_memberships SET collection_id = (
				SELECT collection_id FROM composite_artifacts
				WHERE composite_artifacts.id = composite_memberships.composite_id
			)
			WHERE collection_id = ''
		`)
		if err != nil {
			return fmt.Errorf("failed to backfill membership collection ids: %w", err)
		}

		_, err = db.Exec(`RELEASE SAVEPOINT composite_collection_backfill`)
		if err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		savepointReleased = true

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to check composite_memberships.collection_id: %w", err)
	}

	return nil
}
