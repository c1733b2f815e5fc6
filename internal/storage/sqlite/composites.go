package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skillmeat/skillmeat/internal/types"
)

func upsertComposite(ctx context.Context, q querier, c *types.CompositeArtifact) error {
	if !strings.HasPrefix(c.ID, "composite:") {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertComposite",
			"invalid_composite_id", "composite id %q must start with \"composite:\"", c.ID)
	}
	if !c.CompositeType.IsValid() {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertComposite",
			"invalid_composite_type", "composite type %q is not accepted", c.CompositeType)
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO composite_artifacts (id, name, composite_type, source_url, collection_id, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			composite_type = excluded.composite_type,
			source_url = excluded.source_url,
			collection_id = excluded.collection_id,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, string(c.CompositeType), c.SourceURL, c.CollectionID, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert composite %s: %w", c.ID, err)
	}
	return nil
}

func addCompositeMembership(ctx context.Context, q querier, m *types.CompositeMembership) error {
	if m.RelationshipType == "" {
		m.RelationshipType = "contains"
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO composite_memberships (composite_id, child_uuid, position, pinned_version_hash, relationship_type, collection_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(composite_id, child_uuid) DO UPDATE SET
			position = excluded.position,
			pinned_version_hash = excluded.pinned_version_hash,
			relationship_type = excluded.relationship_type,
			collection_id = excluded.collection_id
	`, m.CompositeID, m.ChildUUID, m.Position, m.PinnedVersionHash, m.RelationshipType, m.CollectionID)
	if err != nil {
		return fmt.Errorf("failed to add membership %s -> %s: %w", m.CompositeID, m.ChildUUID, err)
	}
	return nil
}

func deleteCompositeMemberships(ctx context.Context, q querier, compositeID string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM composite_memberships WHERE composite_id = ?`, compositeID)
	if err != nil {
		return fmt.Errorf("failed to delete memberships of %s: %w", compositeID, err)
	}
	return nil
}

// UpsertComposite creates or updates a composite parent row.
func (s *SQLiteStorage) UpsertComposite(ctx context.Context, c *types.CompositeArtifact) error {
	return upsertComposite(ctx, s.db, c)
}

// GetComposite returns a composite by its "composite:<slug>" id.
func (s *SQLiteStorage) GetComposite(ctx context.Context, id string) (*types.CompositeArtifact, error) {
	var c types.CompositeArtifact
	var ctype string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, composite_type, source_url, collection_id, description, created_at, updated_at
		FROM composite_artifacts WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &ctype, &c.SourceURL, &c.CollectionID, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetComposite",
			"unknown_composite", "composite %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get composite %s: %w", id, err)
	}
	c.CompositeType = types.CompositeType(ctype)
	return &c, nil
}

// ListComposites returns composites, optionally scoped to one collection.
func (s *SQLiteStorage) ListComposites(ctx context.Context, collectionID string) ([]*types.CompositeArtifact, error) {
	query := `SELECT id, name, composite_type, source_url, collection_id, description, created_at, updated_at
		FROM composite_artifacts`
	var args []interface{}
	if collectionID != "" {
		query += ` WHERE collection_id = ?`
		args = append(args, collectionID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list composites: %w", err)
	}
	defer rows.Close()

	var result []*types.CompositeArtifact
	for rows.Next() {
		var c types.CompositeArtifact
		var ctype string
		if err := rows.Scan(&c.ID, &c.Name, &ctype, &c.SourceURL, &c.CollectionID, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan composite: %w", err)
		}
		c.CompositeType = types.CompositeType(ctype)
		result = append(result, &c)
	}
	return result, rows.Err()
}

// AddCompositeMembership pins a child into a composite.
func (s *SQLiteStorage) AddCompositeMembership(ctx context.Context, m *types.CompositeMembership) error {
	return addCompositeMembership(ctx, s.db, m)
}

// GetCompositeMemberships returns a composite's pins in position order.
func (s *SQLiteStorage) GetCompositeMemberships(ctx context.Context, compositeID string) ([]*types.CompositeMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT composite_id, child_uuid, position, pinned_version_hash, relationship_type, collection_id
		FROM composite_memberships WHERE composite_id = ? ORDER BY position
	`, compositeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get memberships of %s: %w", compositeID, err)
	}
	defer rows.Close()

	var result []*types.CompositeMembership
	for rows.Next() {
		var m types.CompositeMembership
		if err := rows.Scan(&m.CompositeID, &m.ChildUUID, &m.Position, &m.PinnedVersionHash, &m.RelationshipType, &m.CollectionID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

// DeleteCompositeMemberships removes every pin of a composite. Re-import
// replaces memberships wholesale so stale children disappear.
func (s *SQLiteStorage) DeleteCompositeMemberships(ctx context.Context, compositeID string) error {
	return deleteCompositeMemberships(ctx, s.db, compositeID)
}
