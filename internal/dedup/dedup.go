// Package dedup decides what an importer should do with an incoming
// (name, type, content hash) triple: link an existing version, append a
// new version to an existing artifact, or create a new artifact.
package dedup

import (
	"context"

	"github.com/skillmeat/skillmeat/internal/types"
)

// Lookups is the slice of the storage layer the resolver probes. Both
// storage.Storage and storage.Transaction satisfy it, so the resolver
// works inside and outside import transactions.
type Lookups interface {
	GetVersionByHash(ctx context.Context, contentHash string) (*types.ArtifactVersion, error)
	FindArtifactByName(ctx context.Context, name string, t types.ArtifactType) (*types.Artifact, error)
}

// Resolve categorizes an incoming artifact against registry state.
// It distinguishes between:
//  1. link_existing - an ArtifactVersion with this content hash already
//     exists. The result carries the owning artifact and the version id;
//     the caller performs no registry writes.
//  2. create_new_version - no hash match, but an artifact with the same
//     name and type exists. The caller appends a version whose parent is
//     that artifact's latest.
//  3. create_new_artifact - neither matched. The caller creates the
//     artifact and its root version.
//
// Name matching is case-insensitive, type matching is strict. Both probes
// are index-backed; the name probe is skipped when the hash probe hits.
func Resolve(ctx context.Context, store Lookups, name string, t types.ArtifactType, contentHash string) (*types.DedupResult, error) {
	const op = "dedup.Resolve"
	if contentHash == "" {
		return nil, types.NewDetailError(types.KindValidation, op, "empty_hash", "content hash is required")
	}
	if name == "" {
		return nil, types.NewDetailError(types.KindValidation, op, "empty_name", "artifact name is required")
	}
	if !t.IsValid() {
		return nil, types.NewDetailError(types.KindValidation, op, "invalid_type", "unknown artifact type %q", t)
	}

	v, err := store.GetVersionByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if v.ArtifactUUID == "" {
			return nil, types.NewDetailError(types.KindIntegrity, op, "hash_mapping",
				"version %d for hash %s maps to no artifact", v.ID, contentHash)
		}
		return &types.DedupResult{
			Decision:     types.LinkExisting,
			ArtifactUUID: v.ArtifactUUID,
			VersionID:    v.ID,
			ContentHash:  contentHash,
		}, nil
	}

	a, err := store.FindArtifactByName(ctx, name, t)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return &types.DedupResult{
			Decision:     types.CreateNewVersion,
			ArtifactUUID: a.UUID,
			ContentHash:  contentHash,
		}, nil
	}

	return &types.DedupResult{
		Decision:    types.CreateNewArtifact,
		ContentHash: contentHash,
	}, nil
}
