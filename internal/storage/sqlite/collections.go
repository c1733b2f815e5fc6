package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/skillmeat/skillmeat/internal/types"
)

// UpsertProject creates or updates a project row.
func (s *SQLiteStorage) UpsertProject(ctx context.Context, p *types.Project) error {
	if p.ID == "" {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertProject",
			"empty_id", "project id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, path, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, path = excluded.path
	`, p.ID, p.Name, p.Path, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject returns a project by id.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetProject",
			"unknown_project", "project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns every project.
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var result []*types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// UpsertCollection creates or updates a collection row.
func (s *SQLiteStorage) UpsertCollection(ctx context.Context, c *types.Collection) error {
	if c.ID == "" {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertCollection",
			"empty_id", "collection id is required")
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, path, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, c.Path, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", c.ID, err)
	}
	return nil
}

// GetCollection returns a collection by id.
func (s *SQLiteStorage) GetCollection(ctx context.Context, id string) (*types.Collection, error) {
	var c types.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, version, created_at, updated_at FROM collections WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Path, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetCollection",
			"unknown_collection", "collection %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", id, err)
	}
	return &c, nil
}

// ListCollections returns every collection.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*types.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, version, created_at, updated_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var result []*types.Collection
	for rows.Next() {
		var c types.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Path, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

func upsertCollectionArtifact(ctx context.Context, q querier, ca *types.CollectionArtifact) error {
	if ca.AddedAt.IsZero() {
		ca.AddedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO collection_artifacts (collection_id, artifact_uuid, path, origin, tags_json, resolved_version, version, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, artifact_uuid) DO UPDATE SET
			path = excluded.path,
			origin = excluded.origin,
			tags_json = excluded.tags_json,
			resolved_version = excluded.resolved_version,
			version = excluded.version
	`, ca.CollectionID, ca.ArtifactUUID, ca.Path, ca.Origin,
		formatJSONStringArray(ca.Tags), ca.ResolvedVersion, ca.Version, ca.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert collection artifact %s/%s: %w",
			ca.CollectionID, ca.ArtifactUUID, err)
	}
	return nil
}

// UpsertCollectionArtifact joins an artifact into a collection.
func (s *SQLiteStorage) UpsertCollectionArtifact(ctx context.Context, ca *types.CollectionArtifact) error {
	return upsertCollectionArtifact(ctx, s.db, ca)
}

// GetCollectionArtifact returns one collection join row.
func (s *SQLiteStorage) GetCollectionArtifact(ctx context.Context, collectionID, artifactUUID string) (*types.CollectionArtifact, error) {
	var ca types.CollectionArtifact
	var tagsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT collection_id, artifact_uuid, path, origin, tags_json, resolved_version, version, added_at
		FROM collection_artifacts WHERE collection_id = ? AND artifact_uuid = ?
	`, collectionID, artifactUUID).Scan(
		&ca.CollectionID, &ca.ArtifactUUID, &ca.Path, &ca.Origin, &tagsJSON,
		&ca.ResolvedVersion, &ca.Version, &ca.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetCollectionArtifact",
			"unknown_membership", "artifact %s is not in collection %s", artifactUUID, collectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection artifact: %w", err)
	}
	ca.Tags = parseJSONStringArray(tagsJSON)
	return &ca, nil
}

// ListCollectionArtifacts returns a collection's join rows ordered by path.
func (s *SQLiteStorage) ListCollectionArtifacts(ctx context.Context, collectionID string) ([]*types.CollectionArtifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, artifact_uuid, path, origin, tags_json, resolved_version, version, added_at
		FROM collection_artifacts WHERE collection_id = ? ORDER BY path
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection artifacts: %w", err)
	}
	defer rows.Close()

	var result []*types.CollectionArtifact
	for rows.Next() {
		var ca types.CollectionArtifact
		var tagsJSON string
		if err := rows.Scan(&ca.CollectionID, &ca.ArtifactUUID, &ca.Path, &ca.Origin,
			&tagsJSON, &ca.ResolvedVersion, &ca.Version, &ca.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection artifact: %w", err)
		}
		ca.Tags = parseJSONStringArray(tagsJSON)
		result = append(result, &ca)
	}
	return result, rows.Err()
}

// UpdateCollectionArtifactTags replaces the cached tag list on a join row.
func (s *SQLiteStorage) UpdateCollectionArtifactTags(ctx context.Context, collectionID, artifactUUID string, tags []string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_artifacts SET tags_json = ?
		WHERE collection_id = ? AND artifact_uuid = ?
	`, formatJSONStringArray(tags), collectionID, artifactUUID)
	if err != nil {
		return fmt.Errorf("failed to update tags for %s/%s: %w", collectionID, artifactUUID, err)
	}
	return nil
}
