package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillmeat/skillmeat/internal/lineage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// isUniqueConstraintError checks if err is a UNIQUE constraint violation.
// AppendVersion uses it to treat duplicate content hashes as idempotent.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func upsertArtifact(ctx context.Context, q querier, a *types.Artifact) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if !a.Type.IsValid() {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertArtifact",
			"invalid_type", "unknown artifact type %q", a.Type)
	}
	if a.Name == "" {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertArtifact",
			"empty_name", "artifact name is required")
	}
	if a.ProjectID == "" {
		a.ProjectID = types.SentinelProjectID
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	platforms := make([]string, len(a.TargetPlatforms))
	for i, p := range a.TargetPlatforms {
		platforms[i] = string(p)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO artifacts (
			uuid, project_id, type, name, description, source_url,
			deployed_version, upstream_version, outdated, local_modified,
			target_platforms, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			project_id = excluded.project_id,
			description = excluded.description,
			source_url = excluded.source_url,
			deployed_version = excluded.deployed_version,
			upstream_version = excluded.upstream_version,
			outdated = excluded.outdated,
			local_modified = excluded.local_modified,
			target_platforms = excluded.target_platforms,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`,
		a.UUID, a.ProjectID, string(a.Type), a.Name, a.Description, a.SourceURL,
		a.DeployedVersion, a.UpstreamVersion, boolToInt(a.Outdated), boolToInt(a.LocalModified),
		formatJSONStringArray(platforms), formatJSONStringMap(a.Metadata), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact %s: %w", a.Key(), err)
	}
	return nil
}

const artifactColumns = `uuid, project_id, type, name, description, source_url,
	deployed_version, upstream_version, outdated, local_modified,
	target_platforms, metadata, created_at, updated_at`

func scanArtifact(row interface{ Scan(...interface{}) error }) (*types.Artifact, error) {
	var a types.Artifact
	var typ, platforms, metadata string
	var outdated, localMod int
	if err := row.Scan(
		&a.UUID, &a.ProjectID, &typ, &a.Name, &a.Description, &a.SourceURL,
		&a.DeployedVersion, &a.UpstreamVersion, &outdated, &localMod,
		&platforms, &metadata, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Type = types.ArtifactType(typ)
	a.Outdated = outdated != 0
	a.LocalModified = localMod != 0
	for _, p := range parseJSONStringArray(platforms) {
		a.TargetPlatforms = append(a.TargetPlatforms, types.Platform(p))
	}
	a.Metadata = parseJSONStringMap(metadata)
	return &a, nil
}

func getArtifact(ctx context.Context, q querier, artifactUUID string) (*types.Artifact, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE uuid = ?`, artifactUUID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetArtifact",
			"unknown_artifact", "artifact %s not found", artifactUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", artifactUUID, err)
	}
	return a, nil
}

// findArtifactByName matches case-insensitively on name (NOCASE collation)
// and strictly on type. A miss returns (nil, nil): callers use this as the
// dedup resolver's second probe, where absence is an answer, not an error.
func findArtifactByName(ctx context.Context, q querier, name string, t types.ArtifactType) (*types.Artifact, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE name = ? AND type = ? LIMIT 1`,
		name, string(t))
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find artifact %s:%s: %w", t, name, err)
	}
	return a, nil
}

// UpsertArtifact creates or updates an artifact row, generating a UUID
// when the caller left it empty.
func (s *SQLiteStorage) UpsertArtifact(ctx context.Context, a *types.Artifact) error {
	if err := upsertArtifact(ctx, s.db, a); err != nil {
		return err
	}
	s.updateSearchIndex(ctx, a)
	return nil
}

// GetArtifact returns the artifact with the given UUID.
func (s *SQLiteStorage) GetArtifact(ctx context.Context, artifactUUID string) (*types.Artifact, error) {
	return getArtifact(ctx, s.db, artifactUUID)
}

// GetArtifactByKey resolves "<type>:<name>" lookups; name matching is
// case-insensitive.
func (s *SQLiteStorage) GetArtifactByKey(ctx context.Context, t types.ArtifactType, name string) (*types.Artifact, error) {
	a, err := findArtifactByName(ctx, s.db, name, t)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetArtifactByKey",
			"unknown_artifact", "artifact %s not found", types.MakeKey(t, name))
	}
	return a, nil
}

// FindArtifactByName is the dedup resolver's name/type probe. A miss is
// (nil, nil), not an error.
func (s *SQLiteStorage) FindArtifactByName(ctx context.Context, name string, t types.ArtifactType) (*types.Artifact, error) {
	return findArtifactByName(ctx, s.db, name, t)
}

// ListArtifacts returns artifacts matching the filter, newest first.
func (s *SQLiteStorage) ListArtifacts(ctx context.Context, filter types.ArtifactFilter) ([]*types.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts a`
	var conds []string
	var args []interface{}

	if filter.CollectionID != "" {
		query += ` JOIN collection_artifacts ca ON ca.artifact_uuid = a.uuid`
		conds = append(conds, "ca.collection_id = ?")
		args = append(args, filter.CollectionID)
	}
	if filter.Type != "" {
		conds = append(conds, "a.type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ProjectID != "" {
		conds = append(conds, "a.project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Outdated != nil {
		conds = append(conds, "a.outdated = ?")
		args = append(args, boolToInt(*filter.Outdated))
	}
	if filter.LocalModified != nil {
		conds = append(conds, "a.local_modified = ?")
		args = append(args, boolToInt(*filter.LocalModified))
	}
	for _, tag := range filter.Tags {
		conds = append(conds, `a.uuid IN (
			SELECT at.artifact_uuid FROM artifact_tags at
			JOIN tags t ON t.id = at.tag_id WHERE t.slug = ?)`)
		args = append(args, tag)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.updated_at DESC, a.uuid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var result []*types.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// DeleteArtifact removes an artifact and, via cascade, its versions, tag
// joins, group memberships, and composite pins.
func (s *SQLiteStorage) DeleteArtifact(ctx context.Context, artifactUUID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE uuid = ?`, artifactUUID)
	if err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", artifactUUID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.DeleteArtifact",
			"unknown_artifact", "artifact %s not found", artifactUUID)
	}
	s.deleteSearchIndex(ctx, artifactUUID)
	return nil
}

const versionColumns = `id, artifact_uuid, content_hash, parent_hash, change_origin, version_lineage, created_at`

func scanVersion(row interface{ Scan(...interface{}) error }) (*types.ArtifactVersion, error) {
	var v types.ArtifactVersion
	var parent sql.NullString
	var origin, lineageJSON string
	if err := row.Scan(&v.ID, &v.ArtifactUUID, &v.ContentHash, &parent, &origin, &lineageJSON, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.ParentHash = parent.String
	v.ChangeOrigin = types.ChangeOrigin(origin)
	v.Lineage = parseJSONStringArray(lineageJSON)
	return &v, nil
}

func getVersionByHash(ctx context.Context, q querier, contentHash string) (*types.ArtifactVersion, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM artifact_versions WHERE content_hash = ?`, contentHash)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version by hash: %w", err)
	}
	return v, nil
}

func latestVersion(ctx context.Context, q querier, artifactUUID string) (*types.ArtifactVersion, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM artifact_versions WHERE artifact_uuid = ? ORDER BY id DESC LIMIT 1`,
		artifactUUID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return v, nil
}

// appendVersion inserts a version row, building its lineage from the
// parent's. A duplicate content hash returns the existing row unchanged:
// the registry is append-only and content-addressed, so re-seeing a hash
// is idempotent, never an error.
func appendVersion(ctx context.Context, q querier, v *types.ArtifactVersion) (*types.ArtifactVersion, error) {
	if len(v.ContentHash) != 64 {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.AppendVersion",
			"invalid_hash", "content hash must be 64 hex chars, got %d", len(v.ContentHash))
	}
	if !v.ChangeOrigin.IsValid() {
		return nil, types.NewDetailError(types.KindValidation, "sqlite.AppendVersion",
			"invalid_origin", "unknown change origin %q", v.ChangeOrigin)
	}

	if existing, err := getVersionByHash(ctx, q, v.ContentHash); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	var parentLineage []string
	if v.ParentHash != "" {
		parent, err := getVersionByHash(ctx, q, v.ParentHash)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentLineage = parent.Lineage
		} else {
			// Orphan parent: downgrade to a root lineage.
			v.ParentHash = ""
		}
	}
	v.Lineage = lineage.Build(parentLineage, v.ParentHash, v.ContentHash)

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var parent interface{}
	if v.ParentHash != "" {
		parent = v.ParentHash
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO artifact_versions (artifact_uuid, content_hash, parent_hash, change_origin, version_lineage, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, v.ArtifactUUID, v.ContentHash, parent, string(v.ChangeOrigin),
		formatJSONStringArray(v.Lineage), v.CreatedAt).Scan(&v.ID)
	if err != nil {
		// Lost a race with a concurrent writer of the same content: the
		// existing row wins.
		if isUniqueConstraintError(err) {
			return getVersionByHash(ctx, q, v.ContentHash)
		}
		return nil, fmt.Errorf("failed to append version: %w", err)
	}
	return v, nil
}

// AppendVersion adds a version row to the registry. Duplicate content
// hashes return the existing row (idempotent).
func (s *SQLiteStorage) AppendVersion(ctx context.Context, v *types.ArtifactVersion) (*types.ArtifactVersion, error) {
	return appendVersion(ctx, s.db, v)
}

// GetVersionByHash returns the version with the given content hash, or
// (nil, nil) when no such version exists.
func (s *SQLiteStorage) GetVersionByHash(ctx context.Context, contentHash string) (*types.ArtifactVersion, error) {
	return getVersionByHash(ctx, s.db, contentHash)
}

// LatestVersion returns the most recent version row for an artifact, or
// (nil, nil) when it has none.
func (s *SQLiteStorage) LatestVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error) {
	return latestVersion(ctx, s.db, artifactUUID)
}

// RootVersion returns the first version row for an artifact, or (nil, nil).
func (s *SQLiteStorage) RootVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM artifact_versions WHERE artifact_uuid = ? ORDER BY id ASC LIMIT 1`,
		artifactUUID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get root version: %w", err)
	}
	return v, nil
}

// VersionChain returns every version row for an artifact in append order.
func (s *SQLiteStorage) VersionChain(ctx context.Context, artifactUUID string) ([]*types.ArtifactVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM artifact_versions WHERE artifact_uuid = ? ORDER BY id ASC`,
		artifactUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get version chain: %w", err)
	}
	defer rows.Close()

	var chain []*types.ArtifactVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		chain = append(chain, v)
	}
	return chain, rows.Err()
}

// VersionDepth is the version's distance from its root: len(lineage)-1.
func (s *SQLiteStorage) VersionDepth(ctx context.Context, contentHash string) (int, error) {
	v, err := getVersionByHash(ctx, s.db, contentHash)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, types.NewDetailError(types.KindNotFound, "sqlite.VersionDepth",
			"unknown_version", "no version with hash %s", contentHash)
	}
	return v.Depth(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
