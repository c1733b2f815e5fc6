package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skillmeat/skillmeat/internal/types"
)

const groupColumns = `id, collection_id, name, description, color, icon, position`

func scanGroup(row interface{ Scan(...interface{}) error }) (*types.Group, error) {
	var g types.Group
	if err := row.Scan(&g.ID, &g.CollectionID, &g.Name, &g.Description,
		&g.Color, &g.Icon, &g.Position); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a group. Names are unique within a collection.
func (s *SQLiteStorage) CreateGroup(ctx context.Context, g *types.Group) (*types.Group, error) {
	if g.Name == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.CreateGroup",
			"empty_name", "group name is required")
	}
	if g.CollectionID == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.CreateGroup",
			"empty_collection", "group collection id is required")
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO artifact_groups (collection_id, name, description, color, icon, position)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, g.CollectionID, g.Name, g.Description, g.Color, g.Icon, g.Position).Scan(&g.ID)
	if isUniqueConstraintError(err) {
		return nil, types.NewDetailError(types.KindConflict, "sqlite.CreateGroup",
			"duplicate_group", "group %q already exists in collection %s", g.Name, g.CollectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create group %q: %w", g.Name, err)
	}
	return g, nil
}

// GetGroup returns a group by id.
func (s *SQLiteStorage) GetGroup(ctx context.Context, id int64) (*types.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM artifact_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetGroup",
			"unknown_group", "group %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}
	return g, nil
}

// ListGroups returns a collection's groups in display order.
func (s *SQLiteStorage) ListGroups(ctx context.Context, collectionID string) ([]*types.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM artifact_groups WHERE collection_id = ? ORDER BY position, name`,
		collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var result []*types.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// UpdateGroup rewrites a group's mutable fields.
func (s *SQLiteStorage) UpdateGroup(ctx context.Context, g *types.Group) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE artifact_groups SET name = ?, description = ?, color = ?, icon = ?, position = ?
		WHERE id = ?
	`, g.Name, g.Description, g.Color, g.Icon, g.Position, g.ID)
	if isUniqueConstraintError(err) {
		return types.NewDetailError(types.KindConflict, "sqlite.UpdateGroup",
			"duplicate_group", "group %q already exists in collection %s", g.Name, g.CollectionID)
	}
	if err != nil {
		return fmt.Errorf("failed to update group %d: %w", g.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.UpdateGroup",
			"unknown_group", "group %d not found", g.ID)
	}
	return nil
}

// DeleteGroup removes a group; memberships cascade. Deployment-set members
// that referenced the group cascade away too, which the set resolver
// tolerates as an empty expansion.
func (s *SQLiteStorage) DeleteGroup(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifact_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.DeleteGroup",
			"unknown_group", "group %d not found", id)
	}
	return nil
}

// CountGroups returns the number of groups in a collection.
func (s *SQLiteStorage) CountGroups(ctx context.Context, collectionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifact_groups WHERE collection_id = ?`, collectionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return n, nil
}

// AddGroupMember adds an artifact to a group at the given position.
// Re-adding moves the member to the new position.
func (s *SQLiteStorage) AddGroupMember(ctx context.Context, groupID int64, artifactUUID string, position int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, artifact_uuid, position) VALUES (?, ?, ?)
		ON CONFLICT(group_id, artifact_uuid) DO UPDATE SET position = excluded.position
	`, groupID, artifactUUID, position)
	if err != nil {
		return fmt.Errorf("failed to add %s to group %d: %w", artifactUUID, groupID, err)
	}
	return nil
}

// RemoveGroupMember removes an artifact from a group.
func (s *SQLiteStorage) RemoveGroupMember(ctx context.Context, groupID int64, artifactUUID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND artifact_uuid = ?`, groupID, artifactUUID)
	if err != nil {
		return fmt.Errorf("failed to remove %s from group %d: %w", artifactUUID, groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.RemoveGroupMember",
			"unknown_member", "artifact %s is not in group %d", artifactUUID, groupID)
	}
	return nil
}

// GetGroupMembers returns a group's members in position order.
func (s *SQLiteStorage) GetGroupMembers(ctx context.Context, groupID int64) ([]*types.GroupArtifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, artifact_uuid, position FROM group_members WHERE group_id = ? ORDER BY position, artifact_uuid`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var result []*types.GroupArtifact
	for rows.Next() {
		var m types.GroupArtifact
		if err := rows.Scan(&m.GroupID, &m.ArtifactUUID, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

// GetAllGroupMembers returns every group's member UUIDs in position order,
// keyed by group id. The set resolver uses this to expand group members
// without per-group queries.
func (s *SQLiteStorage) GetAllGroupMembers(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, artifact_uuid FROM group_members ORDER BY group_id, position, artifact_uuid`)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var u string
		if err := rows.Scan(&id, &u); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		result[id] = append(result[id], u)
	}
	return result, rows.Err()
}
