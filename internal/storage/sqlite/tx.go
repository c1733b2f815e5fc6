package sqlite

import (
	"context"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// sqliteTx implements storage.Transaction over a single dedicated
// connection that RunInTransaction has already placed inside
// BEGIN IMMEDIATE. Every method delegates to the same package-level
// helpers the non-transactional paths use, so the SQL lives in exactly
// one place.
type sqliteTx struct {
	q   querier
	fts bool
}

var _ storage.Transaction = (*sqliteTx)(nil)

func (t *sqliteTx) UpsertArtifact(ctx context.Context, a *types.Artifact) error {
	if err := upsertArtifact(ctx, t.q, a); err != nil {
		return err
	}
	// Refresh the search row on the same connection so it commits (or
	// rolls back) with the artifact. Tags are joined outside import
	// transactions; TagArtifact refreshes the row again later.
	if t.fts {
		if _, err := t.q.ExecContext(ctx,
			`DELETE FROM artifact_search WHERE uuid = ?`, a.UUID); err != nil {
			debug.Logf("sqlite: tx search index delete failed for %s: %v", a.UUID, err)
			return nil
		}
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO artifact_search (uuid, name, description, tags) VALUES (?, ?, ?, '')`,
			a.UUID, a.Name, a.Description); err != nil {
			debug.Logf("sqlite: tx search index insert failed for %s: %v", a.UUID, err)
		}
	}
	return nil
}

func (t *sqliteTx) GetArtifact(ctx context.Context, artifactUUID string) (*types.Artifact, error) {
	return getArtifact(ctx, t.q, artifactUUID)
}

func (t *sqliteTx) FindArtifactByName(ctx context.Context, name string, typ types.ArtifactType) (*types.Artifact, error) {
	return findArtifactByName(ctx, t.q, name, typ)
}

func (t *sqliteTx) AppendVersion(ctx context.Context, v *types.ArtifactVersion) (*types.ArtifactVersion, error) {
	return appendVersion(ctx, t.q, v)
}

func (t *sqliteTx) GetVersionByHash(ctx context.Context, contentHash string) (*types.ArtifactVersion, error) {
	return getVersionByHash(ctx, t.q, contentHash)
}

func (t *sqliteTx) LatestVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error) {
	return latestVersion(ctx, t.q, artifactUUID)
}

func (t *sqliteTx) UpsertComposite(ctx context.Context, c *types.CompositeArtifact) error {
	return upsertComposite(ctx, t.q, c)
}

func (t *sqliteTx) DeleteCompositeMemberships(ctx context.Context, compositeID string) error {
	return deleteCompositeMemberships(ctx, t.q, compositeID)
}

func (t *sqliteTx) AddCompositeMembership(ctx context.Context, m *types.CompositeMembership) error {
	return addCompositeMembership(ctx, t.q, m)
}

func (t *sqliteTx) UpsertCollectionArtifact(ctx context.Context, ca *types.CollectionArtifact) error {
	return upsertCollectionArtifact(ctx, t.q, ca)
}
