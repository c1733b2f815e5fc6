package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// updateSearchIndex refreshes the full-text row for an artifact. Failures
// are logged and swallowed: the index is a convenience projection and must
// never fail a write path.
func (s *SQLiteStorage) updateSearchIndex(ctx context.Context, a *types.Artifact) {
	if !s.fts {
		return
	}
	tags, err := s.GetArtifactTags(ctx, a.UUID)
	if err != nil {
		debug.Logf("sqlite: search index tag lookup failed for %s: %v", a.UUID, err)
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_search WHERE uuid = ?`, a.UUID); err != nil {
		debug.Logf("sqlite: search index delete failed for %s: %v", a.UUID, err)
		return
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_search (uuid, name, description, tags) VALUES (?, ?, ?, ?)`,
		a.UUID, a.Name, a.Description, strings.Join(names, " ")); err != nil {
		debug.Logf("sqlite: search index insert failed for %s: %v", a.UUID, err)
	}
}

func (s *SQLiteStorage) deleteSearchIndex(ctx context.Context, artifactUUID string) {
	if !s.fts {
		return
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_search WHERE uuid = ?`, artifactUUID); err != nil {
		debug.Logf("sqlite: search index delete failed for %s: %v", artifactUUID, err)
	}
}

// RebuildSearchIndex repopulates the full-text index from the artifact
// table. Recovery calls this after bulk cache imports.
func (s *SQLiteStorage) RebuildSearchIndex(ctx context.Context) error {
	if !s.fts {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifact_search`); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}
	artifacts, err := s.ListArtifacts(ctx, types.ArtifactFilter{})
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		s.updateSearchIndex(ctx, a)
	}
	return nil
}

// SearchArtifacts ranks matches with bm25 when the full-text index is
// available and falls back to case-insensitive substring matching
// otherwise. Both paths apply the structured filter afterwards.
func (s *SQLiteStorage) SearchArtifacts(ctx context.Context, query string, filter types.ArtifactFilter) ([]*types.Artifact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListArtifacts(ctx, filter)
	}

	var uuids []string
	if s.fts {
		matched, err := s.searchFTS(ctx, query)
		if err != nil {
			// A malformed MATCH expression (stray quotes, operators) is a
			// user-input problem; degrade rather than surface syntax noise.
			debug.Logf("sqlite: fts query failed, using substring fallback: %v", err)
			matched, err = s.searchSubstring(ctx, query)
			if err != nil {
				return nil, err
			}
		}
		uuids = matched
	} else {
		matched, err := s.searchSubstring(ctx, query)
		if err != nil {
			return nil, err
		}
		uuids = matched
	}

	if len(uuids) == 0 {
		return nil, nil
	}

	// Preserve rank order while applying the structured filter.
	candidates, err := s.ListArtifacts(ctx, filter)
	if err != nil {
		return nil, err
	}
	byUUID := make(map[string]*types.Artifact, len(candidates))
	for _, a := range candidates {
		byUUID[a.UUID] = a
	}
	var result []*types.Artifact
	for _, id := range uuids {
		if a, ok := byUUID[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *SQLiteStorage) searchFTS(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, bm25(artifact_search) AS rank
		FROM artifact_search
		WHERE artifact_search MATCH ?
		ORDER BY rank
		LIMIT 200
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		uuids = append(uuids, id)
	}
	return uuids, rows.Err()
}

func (s *SQLiteStorage) searchSubstring(ctx context.Context, query string) ([]string, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid FROM artifacts
		WHERE lower(name) LIKE ? OR lower(description) LIKE ?
		ORDER BY updated_at DESC
		LIMIT 200
	`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("substring search failed: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		uuids = append(uuids, id)
	}
	return uuids, rows.Err()
}
