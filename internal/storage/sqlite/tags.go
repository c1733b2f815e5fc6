package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skillmeat/skillmeat/internal/types"
)

const tagColumns = `id, name, slug, color, description`

func scanTag(row interface{ Scan(...interface{}) error }) (*types.Tag, error) {
	var t types.Tag
	var color sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &color, &t.Description); err != nil {
		return nil, err
	}
	t.Color = color.String
	return &t, nil
}

// CreateTag inserts a tag, deriving the slug from the name when unset.
// If the slug already exists the existing tag is returned unchanged, so
// import paths that auto-create tags from frontmatter are idempotent.
func (s *SQLiteStorage) CreateTag(ctx context.Context, tag *types.Tag) (*types.Tag, error) {
	if tag.Name == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.CreateTag",
			"empty_name", "tag name is required")
	}
	if tag.Slug == "" {
		tag.Slug = types.Slugify(tag.Name)
	}
	if tag.Slug == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.CreateTag",
			"empty_slug", "tag name %q produces an empty slug", tag.Name)
	}

	var color interface{}
	if tag.Color != "" {
		color = tag.Color
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (name, slug, color, description) VALUES (?, ?, ?, ?)
		RETURNING id
	`, tag.Name, tag.Slug, color, tag.Description).Scan(&tag.ID)
	if isUniqueConstraintError(err) {
		return s.GetTagBySlug(ctx, tag.Slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tag %q: %w", tag.Name, err)
	}
	return tag, nil
}

// GetTagBySlug returns the tag with the given slug.
func (s *SQLiteStorage) GetTagBySlug(ctx context.Context, slug string) (*types.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE slug = ?`, slug)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetTagBySlug",
			"unknown_tag", "tag %q not found", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %q: %w", slug, err)
	}
	return t, nil
}

// ListTags returns every tag ordered by name.
func (s *SQLiteStorage) ListTags(ctx context.Context) ([]*types.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var result []*types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// RenameTag changes a tag's name and re-derives its slug. The write-through
// layer propagates the rename into collection manifests afterwards.
func (s *SQLiteStorage) RenameTag(ctx context.Context, slug, newName string) (*types.Tag, error) {
	t, err := s.GetTagBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	newSlug := types.Slugify(newName)
	if newSlug == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.RenameTag",
			"empty_slug", "tag name %q produces an empty slug", newName)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, slug = ? WHERE id = ?`, newName, newSlug, t.ID)
	if isUniqueConstraintError(err) {
		return nil, types.NewDetailError(types.KindConflict, "sqlite.RenameTag",
			"duplicate_tag", "a tag with slug %q already exists", newSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename tag %q: %w", slug, err)
	}
	t.Name = newName
	t.Slug = newSlug
	return t, nil
}

// DeleteTag removes a tag; the artifact_tags joins cascade.
func (s *SQLiteStorage) DeleteTag(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete tag %q: %w", slug, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.DeleteTag",
			"unknown_tag", "tag %q not found", slug)
	}
	return nil
}

// AnyTagWithColor reports whether at least one tag carries a color.
// Recovery treats a colored tag as proof the cache already holds richer
// state than the manifest and skips the tag import.
func (s *SQLiteStorage) AnyTagWithColor(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tags WHERE color IS NOT NULL AND color != '')`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check tag colors: %w", err)
	}
	return n != 0, nil
}

// TagArtifact attaches a tag to an artifact. Re-tagging is a no-op.
func (s *SQLiteStorage) TagArtifact(ctx context.Context, artifactUUID string, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO artifact_tags (artifact_uuid, tag_id) VALUES (?, ?)`,
		artifactUUID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag artifact %s: %w", artifactUUID, err)
	}
	s.refreshSearchRow(ctx, artifactUUID)
	return nil
}

// UntagArtifact detaches a tag from an artifact. Missing joins are a no-op.
func (s *SQLiteStorage) UntagArtifact(ctx context.Context, artifactUUID string, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_tags WHERE artifact_uuid = ? AND tag_id = ?`,
		artifactUUID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag artifact %s: %w", artifactUUID, err)
	}
	s.refreshSearchRow(ctx, artifactUUID)
	return nil
}

// GetArtifactTags returns an artifact's tags ordered by name.
func (s *SQLiteStorage) GetArtifactTags(ctx context.Context, artifactUUID string) ([]*types.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, t.color, t.description
		FROM tags t
		JOIN artifact_tags at ON at.tag_id = t.id
		WHERE at.artifact_uuid = ?
		ORDER BY t.name
	`, artifactUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags for %s: %w", artifactUUID, err)
	}
	defer rows.Close()

	var result []*types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetArtifactsByTag returns the UUIDs of artifacts carrying the tag.
func (s *SQLiteStorage) GetArtifactsByTag(ctx context.Context, tagID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_uuid FROM artifact_tags WHERE tag_id = ? ORDER BY artifact_uuid`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifacts for tag %d: %w", tagID, err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan artifact uuid: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// refreshSearchRow rebuilds one artifact's full-text row after a tag
// change. Failures are logged and swallowed like the other index writes.
func (s *SQLiteStorage) refreshSearchRow(ctx context.Context, artifactUUID string) {
	if !s.fts {
		return
	}
	a, err := getArtifact(ctx, s.db, artifactUUID)
	if err != nil {
		return
	}
	s.updateSearchIndex(ctx, a)
}
