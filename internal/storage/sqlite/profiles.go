package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skillmeat/skillmeat/internal/types"
)

const profileColumns = `project_id, profile_id, platform, root_dir,
	artifact_path_map, config_filenames, context_prefixes, supported_types`

func scanProfile(row interface{ Scan(...interface{}) error }) (*types.DeploymentProfile, error) {
	var p types.DeploymentProfile
	var platform, pathMap, configNames, prefixes, supported string
	if err := row.Scan(&p.ProjectID, &p.ProfileID, &platform, &p.RootDir,
		&pathMap, &configNames, &prefixes, &supported); err != nil {
		return nil, err
	}
	p.Platform = types.Platform(platform)
	p.ArtifactPathMap = parseJSONStringMap(pathMap)
	p.ConfigFilenames = parseJSONStringArray(configNames)
	p.ContextPrefixes = parseJSONStringArray(prefixes)
	for _, t := range parseJSONStringArray(supported) {
		p.SupportedTypes = append(p.SupportedTypes, types.ArtifactType(t))
	}
	return &p, nil
}

// UpsertProfile creates or replaces a deployment profile.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, p *types.DeploymentProfile) error {
	if p.ProfileID == "" {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertProfile",
			"empty_profile_id", "profile id is required")
	}
	if p.ProjectID == "" {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertProfile",
			"empty_project_id", "profile project id is required")
	}
	if !p.Platform.IsValid() {
		return types.NewDetailError(types.KindValidation, "sqlite.UpsertProfile",
			"invalid_platform", "unknown platform %q", p.Platform)
	}
	supported := make([]string, len(p.SupportedTypes))
	for i, t := range p.SupportedTypes {
		supported[i] = string(t)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployment_profiles (
			project_id, profile_id, platform, root_dir,
			artifact_path_map, config_filenames, context_prefixes, supported_types
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, profile_id) DO UPDATE SET
			platform = excluded.platform,
			root_dir = excluded.root_dir,
			artifact_path_map = excluded.artifact_path_map,
			config_filenames = excluded.config_filenames,
			context_prefixes = excluded.context_prefixes,
			supported_types = excluded.supported_types
	`, p.ProjectID, p.ProfileID, string(p.Platform), p.RootDir,
		formatJSONStringMap(p.ArtifactPathMap), formatJSONStringArray(p.ConfigFilenames),
		formatJSONStringArray(p.ContextPrefixes), formatJSONStringArray(supported))
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s/%s: %w", p.ProjectID, p.ProfileID, err)
	}
	return nil
}

// GetProfile returns one profile by its (project, profile) key.
func (s *SQLiteStorage) GetProfile(ctx context.Context, projectID, profileID string) (*types.DeploymentProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM deployment_profiles WHERE project_id = ? AND profile_id = ?`,
		projectID, profileID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewDetailError(types.KindNotFound, "sqlite.GetProfile",
			"unknown_profile", "profile %s/%s not found", projectID, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s/%s: %w", projectID, profileID, err)
	}
	return p, nil
}

// ListProfiles returns a project's profiles ordered by profile id.
func (s *SQLiteStorage) ListProfiles(ctx context.Context, projectID string) ([]*types.DeploymentProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM deployment_profiles WHERE project_id = ? ORDER BY profile_id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var result []*types.DeploymentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// DeleteProfile removes one profile.
func (s *SQLiteStorage) DeleteProfile(ctx context.Context, projectID, profileID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM deployment_profiles WHERE project_id = ? AND profile_id = ?`,
		projectID, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s/%s: %w", projectID, profileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewDetailError(types.KindNotFound, "sqlite.DeleteProfile",
			"unknown_profile", "profile %s/%s not found", projectID, profileID)
	}
	return nil
}
