package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/skillmeat/skillmeat/internal/types"
)

const setColumns = `id, name, description, owner, tags, created_at, updated_at`

func scanSet(row interface{ Scan(...interface{}) error }) (*types.DeploymentSet, error) {
	var ds types.DeploymentSet
	var tagsJSON string
	if err := row.Scan(&ds.ID, &ds.Name, &ds.Description, &ds.Owner,
		&tagsJSON, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, err
	}
	ds.Tags = parseJSONStringArray(tagsJSON)
	return &ds, nil
}

// CreateSet inserts a deployment set. Names are unique workspace-wide.
func (s *SQLiteStorage) CreateSet(ctx context.Context, ds *types.DeploymentSet) (*types.DeploymentSet, error) {
	if ds.Name == "" {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.CreateSet",
			"empty_name", "set name is required")
	}
	now := time.Now().UTC()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO deployment_sets (name, description, owner, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, ds.Name, ds.Description, ds.Owner, formatJSONStringArray(ds.Tags),
		ds.CreatedAt, ds.UpdatedAt).Scan(&ds.ID)
	if isUniqueConstraintError(err) {
		return nil, types.NewDetailError(types.KindConflict, "sqlite.CreateSet",
			"duplicate_set", "a set named %q already exists", ds.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create set %q: %w", ds.Name, err)
	}
	return ds, nil
}

// GetSet returns a set by id.
func (s *SQLiteStorage) GetSet(ctx context.Context, id int64) (*types.DeploymentSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+setColumns+` FROM deployment_sets WHERE id = ?`, id)
	ds, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetSet",
			"unknown_set", "set %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get set %d: %w", id, err)
	}
	return ds, nil
}

// GetSetByName resolves a set by its unique name.
func (s *SQLiteStorage) GetSetByName(ctx context.Context, name string) (*types.DeploymentSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+setColumns+` FROM deployment_sets WHERE name = ?`, name)
	ds, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetSetByName",
			"unknown_set", "set %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get set %q: %w", name, err)
	}
	return ds, nil
}

// ListSets returns every deployment set ordered by name.
func (s *SQLiteStorage) ListSets(ctx context.Context) ([]*types.DeploymentSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+setColumns+` FROM deployment_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	defer rows.Close()

	var result []*types.DeploymentSet
	for rows.Next() {
		ds, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		result = append(result, ds)
	}
	return result, rows.Err()
}

// DeleteSet removes a set. Its membership rows cascade, as do member rows
// in other sets that nested it.
func (s *SQLiteStorage) DeleteSet(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deployment_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete set %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.DeleteSet",
			"unknown_set", "set %d not found", id)
	}
	return nil
}

// AddSetMember appends one member row. A negative position appends after
// the current maximum. Nested-set members are checked for cycles before
// anything is written: if the parent is reachable from the child through
// nested-set edges, the add is rejected.
func (s *SQLiteStorage) AddSetMember(ctx context.Context, m *types.DeploymentSetMember) error {
	var artifactUUID, groupID, childSetID interface{}
	switch m.Kind {
	case types.MemberArtifact:
		if m.ArtifactUUID == "" || m.GroupID != 0 || m.ChildSetID != 0 {
			return types.NewDetailError(types.KindValidation, "sqlite.AddSetMember",
				"invalid_member", "artifact member must set exactly artifact_uuid")
		}
		artifactUUID = m.ArtifactUUID
	case types.MemberGroup:
		if m.GroupID == 0 || m.ArtifactUUID != "" || m.ChildSetID != 0 {
			return types.NewDetailError(types.KindValidation, "sqlite.AddSetMember",
				"invalid_member", "group member must set exactly group_id")
		}
		groupID = m.GroupID
	case types.MemberSet:
		if m.ChildSetID == 0 || m.ArtifactUUID != "" || m.GroupID != 0 {
			return types.NewDetailError(types.KindValidation, "sqlite.AddSetMember",
				"invalid_member", "set member must set exactly child_set_id")
		}
		if err := s.checkSetCycle(ctx, m.SetID, m.ChildSetID); err != nil {
			return err
		}
		childSetID = m.ChildSetID
	default:
		return types.NewDetailError(types.KindValidation, "sqlite.AddSetMember",
			"invalid_member", "unknown member kind %q", m.Kind)
	}

	if m.Position < 0 {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx,
			`SELECT MAX(position) FROM deployment_set_members WHERE set_id = ?`, m.SetID).
			Scan(&max); err != nil {
			return fmt.Errorf("failed to find next position in set %d: %w", m.SetID, err)
		}
		if max.Valid {
			m.Position = int(max.Int64) + 1
		} else {
			m.Position = 0
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployment_set_members (set_id, position, artifact_uuid, group_id, child_set_id)
		VALUES (?, ?, ?, ?, ?)
	`, m.SetID, m.Position, artifactUUID, groupID, childSetID)
	if isUniqueConstraintError(err) {
		return types.NewDetailError(types.KindConflict, "sqlite.AddSetMember",
			"duplicate_position", "set %d already has a member at position %d", m.SetID, m.Position)
	}
	if err != nil {
		return fmt.Errorf("failed to add member to set %d: %w", m.SetID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE deployment_sets SET updated_at = ? WHERE id = ?`, time.Now().UTC(), m.SetID)
	if err != nil {
		return fmt.Errorf("failed to touch set %d: %w", m.SetID, err)
	}
	return nil
}

// checkSetCycle walks nested-set edges from child looking for parent.
// Finding it (or child == parent) means the new edge would close a cycle.
func (s *SQLiteStorage) checkSetCycle(ctx context.Context, parentID, childID int64) error {
	cycle := types.NewDetailError(types.KindConflict, "sqlite.AddSetMember",
		"set_cycle", "cannot nest set %d inside set %d: this would create a circular reference",
		childID, parentID)
	if childID == parentID {
		return cycle
	}

	seen := map[int64]bool{childID: true}
	frontier := []int64{childID}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		rows, err := s.db.QueryContext(ctx,
			`SELECT child_set_id FROM deployment_set_members WHERE set_id = ? AND child_set_id IS NOT NULL`,
			next)
		if err != nil {
			return fmt.Errorf("failed to check set cycle: %w", err)
		}
		var children []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan nested set: %w", err)
			}
			children = append(children, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to check set cycle: %w", err)
		}
		rows.Close()

		for _, id := range children {
			if id == parentID {
				return cycle
			}
			if !seen[id] {
				seen[id] = true
				frontier = append(frontier, id)
			}
		}
	}
	return nil
}

// RemoveSetMember removes the member at a position.
func (s *SQLiteStorage) RemoveSetMember(ctx context.Context, setID int64, position int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM deployment_set_members WHERE set_id = ? AND position = ?`, setID, position)
	if err != nil {
		return fmt.Errorf("failed to remove member from set %d: %w", setID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.RemoveSetMember",
			"unknown_member", "set %d has no member at position %d", setID, position)
	}
	return nil
}

const setMemberColumns = `set_id, position, artifact_uuid, group_id, child_set_id`

func scanSetMember(row interface{ Scan(...interface{}) error }) (*types.DeploymentSetMember, error) {
	var m types.DeploymentSetMember
	var artifactUUID sql.NullString
	var groupID, childSetID sql.NullInt64
	if err := row.Scan(&m.SetID, &m.Position, &artifactUUID, &groupID, &childSetID); err != nil {
		return nil, err
	}
	switch {
	case artifactUUID.Valid:
		m.Kind = types.MemberArtifact
		m.ArtifactUUID = artifactUUID.String
	case groupID.Valid:
		m.Kind = types.MemberGroup
		m.GroupID = groupID.Int64
	case childSetID.Valid:
		m.Kind = types.MemberSet
		m.ChildSetID = childSetID.Int64
	}
	return &m, nil
}

// GetSetMembers returns a set's members in position order.
func (s *SQLiteStorage) GetSetMembers(ctx context.Context, setID int64) ([]*types.DeploymentSetMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+setMemberColumns+` FROM deployment_set_members WHERE set_id = ? ORDER BY position`,
		setID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members of set %d: %w", setID, err)
	}
	defer rows.Close()

	var result []*types.DeploymentSetMember
	for rows.Next() {
		m, err := scanSetMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set member: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetAllSetMembers returns every set's members in position order, keyed by
// set id. The set resolver uses this to expand nested sets without
// per-set queries.
func (s *SQLiteStorage) GetAllSetMembers(ctx context.Context) (map[int64][]*types.DeploymentSetMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+setMemberColumns+` FROM deployment_set_members ORDER BY set_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to get set members: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]*types.DeploymentSetMember)
	for rows.Next() {
		m, err := scanSetMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set member: %w", err)
		}
		result[m.SetID] = append(result[m.SetID], m)
	}
	return result, rows.Err()
}
