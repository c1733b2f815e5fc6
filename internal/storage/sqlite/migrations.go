// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/skillmeat/skillmeat/internal/storage/sqlite/migrations"
)

// Migration represents a single database migration
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run.
// Migrations are run in order during database initialization.
var migrationsList = []Migration{
	{"composite_collection_id", migrations.MigrateCompositeCollectionID},
	{"version_lineage_column", migrations.MigrateVersionLineageColumn},
	{"profile_context_prefixes", migrations.MigrateProfileContextPrefixes},
}

// MigrationInfo contains metadata about a migration for inspection
type MigrationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListMigrations returns all registered migrations with descriptions.
// All migrations are idempotent, so this is the full list, not just
// pending ones.
func ListMigrations() []MigrationInfo {
	result := make([]MigrationInfo, len(migrationsList))
	for i, m := range migrationsList {
		result[i] = MigrationInfo{
			Name:        m.Name,
			Description: getMigrationDescription(m.Name),
		}
	}
	return result
}

func getMigrationDescription(name string) string {
	descriptions := map[string]string{
		"composite_collection_id":  "Adds collection_id to composite tables and backfills parents from their memberships",
		"version_lineage_column":   "Adds version_lineage column to artifact_versions; legacy rows stay empty and are rebuilt from parent_hash on read",
		"profile_context_prefixes": "Adds context_prefixes column to deployment_profiles",
	}
	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Unknown migration"
}

// registrySnapshot records row counts that migrations must preserve.
// The artifact and version tables are the authoritative registry: a
// migration may reshape them but must never lose rows.
type registrySnapshot struct {
	artifacts int
	versions  int
}

func captureSnapshot(db *sql.DB) (registrySnapshot, error) {
	var snap registrySnapshot
	if err := db.QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&snap.artifacts); err != nil {
		return snap, fmt.Errorf("failed to count artifacts: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM artifact_versions`).Scan(&snap.versions); err != nil {
		return snap, fmt.Errorf("failed to count versions: %w", err)
	}
	return snap, nil
}

func verifyInvariants(db *sql.DB, before registrySnapshot) error {
	after, err := captureSnapshot(db)
	if err != nil {
		return err
	}
	if after.artifacts < before.artifacts {
		return fmt.Errorf("artifact count dropped from %d to %d", before.artifacts, after.artifacts)
	}
	if after.versions < before.versions {
		return fmt.Errorf("version count dropped from %d to %d", before.versions, after.versions)
	}
	return nil
}

// RunMigrations executes all registered migrations in order with invariant
// checking. Uses an EXCLUSIVE transaction to prevent race conditions when
// multiple processes open the database simultaneously.
func RunMigrations(db *sql.DB) error {
	// Disable foreign keys BEFORE starting the transaction.
	// PRAGMA foreign_keys must be called when no transaction is active
	// (SQLite limitation). Migrations that rebuild tables need foreign
	// keys off so ON DELETE CASCADE cannot fire mid-rebuild.
	_, err := db.Exec("PRAGMA foreign_keys = OFF")
	if err != nil {
		return fmt.Errorf("failed to disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	// Acquire EXCLUSIVE lock to serialize migrations across processes.
	// Without this, parallel processes can race on check-then-modify
	// operations (column exists, then add it) and fail with duplicate
	// column errors.
	_, err = db.Exec("BEGIN EXCLUSIVE")
	if err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	snapshot, err := captureSnapshot(db)
	if err != nil {
		return fmt.Errorf("failed to capture pre-migration snapshot: %w", err)
	}

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	if err := verifyInvariants(db, snapshot); err != nil {
		return fmt.Errorf("post-migration validation failed: %w", err)
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true

	return nil
}
