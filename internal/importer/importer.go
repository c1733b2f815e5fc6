// Package importer ingests a discovered composite. One database
// transaction writes the parent row, every child artifact and version,
// and the membership pins, so a failed import leaves no partial graph
// behind. Plugin meta-files are staged under a temp sibling of their
// final directory and promoted by rename just before the transaction
// commits.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/dedup"
	"github.com/skillmeat/skillmeat/internal/hashing"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
	"github.com/skillmeat/skillmeat/internal/validation"
)

// relationshipContains is the only membership relationship plugin import
// writes.
const relationshipContains = "contains"

// pluginsDirName is where plugin meta-file directories live under a
// collection root.
const pluginsDirName = "plugins"

// ImportPluginTransactional imports graph into the registry as a single
// unit: the composite row, each child (hashed, deduplicated, linked or
// created), and one membership pin per child with position matching
// discovery order and pinned_version_hash frozen to the imported content.
// Meta-files land under <collectionRoot>/plugins/<slug>/ via a staged
// rename that also removes files dropped since the previous import.
//
// Children already known to the registry by content hash count as reused;
// new versions and new artifacts count as imported. Version rows written
// here carry change_origin=sync.
//
// The returned result is non-nil even on failure: Errors records what
// rolled the import back, and TransactionID ties the attempt to its log
// lines.
func ImportPluginTransactional(ctx context.Context, store storage.Storage, collectionRoot string, graph *types.DiscoveredGraph, sourceURL, projectID, collectionID string) (*types.ImportResult, error) {
	const op = "importer.ImportPluginTransactional"

	result := &types.ImportResult{TransactionID: uuid.NewString()}
	fail := func(err error) (*types.ImportResult, error) {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	if graph == nil {
		return fail(types.NewDetailError(types.KindValidation, op, "nil_graph",
			"no composite graph to import"))
	}
	if !graph.CompositeType.IsValid() {
		return fail(types.NewDetailError(types.KindValidation, op, "invalid_composite_type",
			"unknown composite type %q", graph.CompositeType))
	}
	compositeID, err := types.CompositeID(graph.Parent.Name)
	if err != nil {
		return fail(err)
	}
	result.PluginID = compositeID
	slug := strings.TrimPrefix(compositeID, "composite:")

	debug.Logf("import %s: begin %s (%d children)", result.TransactionID, compositeID, len(graph.Children))

	// Staged is non-empty only while a staging directory exists that has
	// not been promoted; a failed transaction must not leave it behind.
	var staged string
	txErr := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertComposite(ctx, &types.CompositeArtifact{
			ID:            compositeID,
			Name:          graph.Parent.Name,
			CompositeType: graph.CompositeType,
			SourceURL:     sourceURL,
			CollectionID:  collectionID,
			Description:   graph.Parent.Description,
		}); err != nil {
			return err
		}
		// Re-import replaces the membership list wholesale so removed
		// children do not linger at stale positions.
		if err := tx.DeleteCompositeMemberships(ctx, compositeID); err != nil {
			return err
		}

		r := &run{
			tx:             tx,
			result:         result,
			compositeID:    compositeID,
			sourceURL:      sourceURL,
			projectID:      projectID,
			collectionID:   collectionID,
			collectionRoot: collectionRoot,
		}
		for i := range graph.Children {
			child := &graph.Children[i]
			if err := r.importChild(ctx, child, i); err != nil {
				return fmt.Errorf("child %s: %w", child.Key(), err)
			}
		}

		if len(graph.MetaFiles) > 0 && collectionRoot != "" {
			dir, err := stageMetaFiles(collectionRoot, slug, graph.MetaFiles)
			if err != nil {
				return err
			}
			staged = dir
			// Promotion is the last step before commit so a rolled-back
			// transaction never leaves the new directory in place.
			target := filepath.Join(collectionRoot, pluginsDirName, slug)
			if err := utils.ReplaceDir(staged, target); err != nil {
				return types.WrapError(types.KindTransientIO, op, err)
			}
			staged = ""
		}
		return nil
	})
	if staged != "" {
		_ = os.RemoveAll(staged)
	}
	if txErr != nil {
		debug.Warnf("import %s: rolled back: %v", result.TransactionID, txErr)
		return fail(txErr)
	}

	result.Success = true
	debug.Logf("import %s: committed %s: %d imported, %d reused",
		result.TransactionID, compositeID, result.ChildrenImported, result.ChildrenReused)
	return result, nil
}

// run carries the per-import constants so the child loop reads cleanly.
type run struct {
	tx             storage.Transaction
	result         *types.ImportResult
	compositeID    string
	sourceURL      string
	projectID      string
	collectionID   string
	collectionRoot string
}

// importChild hashes one child, asks the dedup resolver what to do with
// it, performs the registry write the decision calls for, and pins the
// membership to the hash just computed.
func (r *run) importChild(ctx context.Context, child *types.DiscoveredArtifact, position int) error {
	if err := validation.ForImport()(child); err != nil {
		return err
	}
	hash, err := hashing.HashPath(child.Path)
	if err != nil {
		return err
	}
	res, err := dedup.Resolve(ctx, r.tx, child.Name, child.Type, hash)
	if err != nil {
		return err
	}

	childUUID := res.ArtifactUUID
	switch res.Decision {
	case types.LinkExisting:
		r.result.ChildrenReused++

	case types.CreateNewVersion:
		latest, err := r.tx.LatestVersion(ctx, childUUID)
		if err != nil {
			return err
		}
		var parentHash string
		if latest != nil {
			parentHash = latest.ContentHash
		}
		if _, err := r.tx.AppendVersion(ctx, &types.ArtifactVersion{
			ArtifactUUID: childUUID,
			ContentHash:  hash,
			ParentHash:   parentHash,
			ChangeOrigin: types.OriginSync,
		}); err != nil {
			return err
		}
		r.result.ChildrenImported++

	case types.CreateNewArtifact:
		a := &types.Artifact{
			ProjectID:       r.projectID,
			Type:            child.Type,
			Name:            child.Name,
			Description:     child.Description,
			SourceURL:       r.sourceURL,
			UpstreamVersion: child.Version,
		}
		if err := r.tx.UpsertArtifact(ctx, a); err != nil {
			return err
		}
		childUUID = a.UUID
		if _, err := r.tx.AppendVersion(ctx, &types.ArtifactVersion{
			ArtifactUUID: childUUID,
			ContentHash:  hash,
			ChangeOrigin: types.OriginSync,
		}); err != nil {
			return err
		}
		r.result.ChildrenImported++

	default:
		return types.NewDetailError(types.KindIntegrity, "importer.importChild",
			"unknown_decision", "dedup resolver returned %q", res.Decision)
	}

	if r.collectionID != "" {
		if err := r.tx.UpsertCollectionArtifact(ctx, &types.CollectionArtifact{
			CollectionID: r.collectionID,
			ArtifactUUID: childUUID,
			Path:         collectionRelative(r.collectionRoot, child.Path),
			Origin:       r.sourceURL,
			Tags:         child.Tags,
			Version:      child.Version,
		}); err != nil {
			return err
		}
	}

	return r.tx.AddCompositeMembership(ctx, &types.CompositeMembership{
		CompositeID:       r.compositeID,
		ChildUUID:         childUUID,
		Position:          position,
		PinnedVersionHash: hash,
		RelationshipType:  relationshipContains,
		CollectionID:      r.collectionID,
	})
}

// stageMetaFiles copies the composite's meta-files into a fresh staging
// directory beside the final plugins/<slug>/ location. The dot prefix
// keeps discovery scans away from half-written staging trees. On error
// the staging directory is removed; callers only ever see a complete one.
func stageMetaFiles(collectionRoot, slug string, metaFiles map[string]string) (string, error) {
	const op = "importer.stageMetaFiles"
	pluginsDir := filepath.Join(collectionRoot, pluginsDirName)
	if err := utils.EnsureDir(pluginsDir); err != nil {
		return "", types.WrapError(types.KindTransientIO, op, err)
	}
	staged, err := os.MkdirTemp(pluginsDir, "."+slug+".staging-")
	if err != nil {
		return "", types.WrapError(types.KindTransientIO, op, err)
	}
	for name, src := range metaFiles {
		if name == "." || name == ".." || name != filepath.Base(name) {
			_ = os.RemoveAll(staged)
			return "", types.NewDetailError(types.KindPathTraversal, op,
				"invalid_meta_name", "meta-file name %q escapes the plugin directory", name)
		}
		if err := utils.CopyFile(src, filepath.Join(staged, name)); err != nil {
			_ = os.RemoveAll(staged)
			return "", types.WrapError(types.KindTransientIO, op, err)
		}
	}
	return staged, nil
}

// collectionRelative rewrites path relative to the collection root when
// it lives inside it. Sources imported from elsewhere on disk keep their
// absolute path.
func collectionRelative(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
