package importer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/dedup"
	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/hashing"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
	"github.com/skillmeat/skillmeat/internal/validation"
)

// artifactsDirName is where standalone artifact files live under a
// collection root, one subdirectory per container type.
const artifactsDirName = "artifacts"

// SingleImport is the outcome of importing one standalone artifact.
type SingleImport struct {
	Artifact *types.Artifact     `json:"artifact"`
	Decision types.DedupDecision `json:"decision"`
	// Path is the collection-relative destination, or the absolute
	// source path when the artifact was imported in place.
	Path string `json:"path"`
}

// ImportArtifact imports one standalone discovered artifact. Sources
// outside the collection are copied into
// <collectionRoot>/artifacts/<container>/ before the transaction
// commits; sources already inside it are imported in place. The registry
// write follows the dedup decision for the source's content hash, and
// version rows carry change_origin=sync just like composite children.
func ImportArtifact(ctx context.Context, store storage.Storage, collectionRoot string, d *types.DiscoveredArtifact, sourceURL, projectID, collectionID string) (*SingleImport, error) {
	const op = "importer.ImportArtifact"

	if err := validation.ForImport()(d); err != nil {
		return nil, err
	}

	hash, err := hashing.HashPath(d.Path)
	if err != nil {
		return nil, err
	}

	destRel, destAbs, inPlace := singleDestination(collectionRoot, d)
	out := &SingleImport{Path: destRel}

	txErr := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		res, err := dedup.Resolve(ctx, tx, d.Name, d.Type, hash)
		if err != nil {
			return err
		}
		out.Decision = res.Decision

		switch res.Decision {
		case types.LinkExisting:
			a, err := tx.GetArtifact(ctx, res.ArtifactUUID)
			if err != nil {
				return err
			}
			out.Artifact = a

		case types.CreateNewVersion:
			a, err := tx.GetArtifact(ctx, res.ArtifactUUID)
			if err != nil {
				return err
			}
			latest, err := tx.LatestVersion(ctx, a.UUID)
			if err != nil {
				return err
			}
			var parentHash string
			if latest != nil {
				parentHash = latest.ContentHash
			}
			if _, err := tx.AppendVersion(ctx, &types.ArtifactVersion{
				ArtifactUUID: a.UUID,
				ContentHash:  hash,
				ParentHash:   parentHash,
				ChangeOrigin: types.OriginSync,
			}); err != nil {
				return err
			}
			out.Artifact = a

		case types.CreateNewArtifact:
			a := &types.Artifact{
				ProjectID:       projectID,
				Type:            d.Type,
				Name:            d.Name,
				Description:     d.Description,
				SourceURL:       sourceURL,
				UpstreamVersion: d.Version,
			}
			if err := tx.UpsertArtifact(ctx, a); err != nil {
				return err
			}
			if _, err := tx.AppendVersion(ctx, &types.ArtifactVersion{
				ArtifactUUID: a.UUID,
				ContentHash:  hash,
				ChangeOrigin: types.OriginSync,
			}); err != nil {
				return err
			}
			out.Artifact = a

		default:
			return types.NewDetailError(types.KindIntegrity, op,
				"unknown_decision", "dedup resolver returned %q", res.Decision)
		}

		if collectionID != "" {
			if err := tx.UpsertCollectionArtifact(ctx, &types.CollectionArtifact{
				CollectionID: collectionID,
				ArtifactUUID: out.Artifact.UUID,
				Path:         destRel,
				Origin:       sourceURL,
				Tags:         d.Tags,
				Version:      d.Version,
			}); err != nil {
				return err
			}
		}

		// Copying is the last step before commit so a rolled-back
		// transaction never leaves half the files in place.
		if !inPlace {
			return copyArtifact(d.Path, destAbs)
		}
		return nil
	})
	if txErr != nil {
		debug.Warnf("import %s: rolled back: %v", d.Key(), txErr)
		return nil, txErr
	}

	debug.Logf("import %s: %s -> %s (%s)", d.Key(), d.Path, destRel, out.Decision)
	return out, nil
}

// singleDestination picks where an imported artifact's files end up. A
// source under the collection root stays put, except under dot
// directories (fetch staging), which count as external; anything
// external is copied under artifacts/<container>/ keeping its base name.
func singleDestination(collectionRoot string, d *types.DiscoveredArtifact) (rel, abs string, inPlace bool) {
	if collectionRoot == "" {
		return d.Path, d.Path, true
	}
	if r := collectionRelative(collectionRoot, d.Path); r != d.Path && !strings.HasPrefix(r, ".") {
		return r, d.Path, true
	}
	container := string(d.Type) + "s"
	if sig, ok := discovery.SignatureFor(d.Type); ok {
		container = sig.Canonical
	}
	base := filepath.Base(d.Path)
	return filepath.ToSlash(filepath.Join(artifactsDirName, container, base)),
		filepath.Join(collectionRoot, artifactsDirName, container, base), false
}

// copyArtifact copies one artifact from src into dest. Directory
// artifacts are staged next to the destination and promoted by rename so
// a partially copied tree never replaces a complete one; hash-excluded
// files are left behind on the way.
func copyArtifact(src, dest string) error {
	const op = "importer.copyArtifact"

	info, err := os.Stat(src)
	if err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := utils.EnsureDir(filepath.Dir(dest)); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}

	if !info.IsDir() {
		if err := utils.CopyFile(src, dest); err != nil {
			return types.WrapError(types.KindTransientIO, op, err)
		}
		return nil
	}

	staged, err := os.MkdirTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".staging-")
	if err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := copyTree(src, staged); err != nil {
		_ = os.RemoveAll(staged)
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := utils.ReplaceDir(staged, dest); err != nil {
		_ = os.RemoveAll(staged)
		return types.WrapError(types.KindTransientIO, op, err)
	}
	return nil
}

// copyTree mirrors src into dest, skipping the same names content
// hashing skips so the copy cannot change the artifact's hash.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if entry.IsDir() {
			if hashing.ExcludedDir(entry.Name()) {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dest, rel), 0o755)
		}
		if hashing.Excluded(entry.Name()) || !entry.Type().IsRegular() {
			return nil
		}
		return utils.CopyFile(path, filepath.Join(dest, rel))
	})
}
