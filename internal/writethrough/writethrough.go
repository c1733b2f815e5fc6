// Package writethrough keeps the on-disk collection in step with cache
// mutations, and rebuilds droppable cache rows from the manifest after
// the cache is lost. Writes flow one way at a time: mutations push DB
// state out to collection.toml and artifact frontmatter, recovery pulls
// manifest state back in, and in both directions the registry tables are
// untouched because nothing on disk can reconstruct them.
package writethrough

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// Syncer pushes cache mutations out to the collection store.
type Syncer struct {
	store storage.Storage

	// retryWindow bounds the exponential backoff applied to transient
	// manifest write failures.
	retryWindow time.Duration
}

// New returns a syncer over the given cache.
func New(store storage.Storage) *Syncer {
	return &Syncer{store: store, retryWindow: 2 * time.Second}
}

// SyncManifest writes the cache's current tag definitions and the
// collection's groups into collection.toml as a full snapshot, not a
// patch. A returned error is tagged write_through_failure and has
// already been logged: the mutation that triggered the sync committed,
// so callers report their own success regardless.
func (s *Syncer) SyncManifest(ctx context.Context, col *collection.Store, collectionID string) error {
	const op = "writethrough.SyncManifest"
	defs, groups, err := s.snapshot(ctx, collectionID)
	if err == nil {
		err = s.writeSnapshot(ctx, col, defs, groups)
	}
	if err != nil {
		debug.Errorf("write-through: manifest sync for %s failed: %v", collectionID, err)
		return &types.Error{Kind: types.KindWriteThroughFailure, Op: op, Err: err}
	}
	return nil
}

// RenameTag renames the tag in the cache, then carries the rename
// outward: every manifest of an artifact holding the tag swaps the old
// slug for the new one, the cached tags_json follows, and the collection
// manifest snapshot refreshes. The rename itself can fail (unknown tag,
// slug conflict) and that error propagates; fan-out failures are logged
// and swallowed.
func (s *Syncer) RenameTag(ctx context.Context, col *collection.Store, collectionID, slug, newName string) (*types.Tag, error) {
	tag, err := s.store.GetTagBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	tagged, err := s.store.GetArtifactsByTag(ctx, tag.ID)
	if err != nil {
		return nil, err
	}
	renamed, err := s.store.RenameTag(ctx, slug, newName)
	if err != nil {
		return nil, err
	}

	s.rewriteTagged(ctx, col, collectionID, tagged, func(tags []string) []string {
		return replaceTag(tags, slug, renamed.Slug)
	})
	_ = s.SyncManifest(ctx, col, collectionID)
	return renamed, nil
}

// TagArtifact attaches a tag to an artifact, creating the tag when its
// slug is unknown, then carries the change outward: the artifact's
// frontmatter gains the tag, the cached tags_json follows, and the
// manifest snapshot refreshes. Same error contract as RenameTag.
func (s *Syncer) TagArtifact(ctx context.Context, col *collection.Store, collectionID, artifactUUID, tagName string) (*types.Tag, error) {
	tag, err := s.store.GetTagBySlug(ctx, types.Slugify(tagName))
	if types.IsKind(err, types.KindNotFound) {
		tag, err = s.store.CreateTag(ctx, &types.Tag{Name: tagName})
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.TagArtifact(ctx, artifactUUID, tag.ID); err != nil {
		return nil, err
	}

	s.rewriteTagged(ctx, col, collectionID, []string{artifactUUID}, func(tags []string) []string {
		return addTag(tags, tag.Name)
	})
	_ = s.SyncManifest(ctx, col, collectionID)
	return tag, nil
}

// UntagArtifact detaches a tag from an artifact and scrubs it from that
// artifact's frontmatter and cached tags_json, then refreshes the
// manifest snapshot. Same error contract as RenameTag.
func (s *Syncer) UntagArtifact(ctx context.Context, col *collection.Store, collectionID, artifactUUID, slug string) error {
	tag, err := s.store.GetTagBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.store.UntagArtifact(ctx, artifactUUID, tag.ID); err != nil {
		return err
	}

	s.rewriteTagged(ctx, col, collectionID, []string{artifactUUID}, func(tags []string) []string {
		return removeTag(tags, slug)
	})
	_ = s.SyncManifest(ctx, col, collectionID)
	return nil
}

// DeleteTag removes the tag from the cache and scrubs it from every
// tagged artifact's frontmatter and cached tags_json, then refreshes the
// manifest snapshot. Same error contract as RenameTag.
func (s *Syncer) DeleteTag(ctx context.Context, col *collection.Store, collectionID, slug string) error {
	tag, err := s.store.GetTagBySlug(ctx, slug)
	if err != nil {
		return err
	}
	tagged, err := s.store.GetArtifactsByTag(ctx, tag.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTag(ctx, slug); err != nil {
		return err
	}

	s.rewriteTagged(ctx, col, collectionID, tagged, func(tags []string) []string {
		return removeTag(tags, slug)
	})
	_ = s.SyncManifest(ctx, col, collectionID)
	return nil
}

// SyncArtifactEntry mirrors one imported artifact into the manifest's
// [[artifacts]] list, joining the registry row with its collection pin.
// Like SyncManifest, a returned error is tagged write_through_failure
// and already logged; the import that triggered it has committed.
func (s *Syncer) SyncArtifactEntry(ctx context.Context, col *collection.Store, collectionID, artifactUUID string) error {
	const op = "writethrough.SyncArtifactEntry"

	a, err := s.store.GetArtifact(ctx, artifactUUID)
	if err == nil {
		var ca *types.CollectionArtifact
		ca, err = s.store.GetCollectionArtifact(ctx, collectionID, artifactUUID)
		if err == nil {
			err = col.UpsertArtifactEntry(ctx, collection.ArtifactEntry{
				Type:   string(a.Type),
				Name:   a.Name,
				Path:   ca.Path,
				Origin: ca.Origin,
				Tags:   ca.Tags,
			})
		}
	}
	if err != nil {
		debug.Errorf("write-through: manifest entry for %s failed: %v", artifactUUID, err)
		return &types.Error{Kind: types.KindWriteThroughFailure, Op: op, Err: err}
	}
	return nil
}

// snapshot reads the full groups and tag definition state for a
// collection out of the cache.
func (s *Syncer) snapshot(ctx context.Context, collectionID string) ([]collection.TagDefinition, []collection.GroupEntry, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, nil, err
	}
	defs := make([]collection.TagDefinition, 0, len(tags))
	for _, t := range tags {
		defs = append(defs, collection.TagDefinition{
			Name:        t.Name,
			Slug:        t.Slug,
			Color:       t.Color,
			Description: t.Description,
		})
	}

	groups, err := s.store.ListGroups(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]collection.GroupEntry, 0, len(groups))
	for _, g := range groups {
		members, err := s.store.GetGroupMembers(ctx, g.ID)
		if err != nil {
			return nil, nil, err
		}
		keys := make([]string, 0, len(members))
		for _, m := range members {
			a, err := s.store.GetArtifact(ctx, m.ArtifactUUID)
			if err != nil {
				if types.IsKind(err, types.KindNotFound) {
					debug.Warnf("write-through: group %s member %s has no artifact row", g.Name, m.ArtifactUUID)
					continue
				}
				return nil, nil, err
			}
			keys = append(keys, a.Key())
		}
		entries = append(entries, collection.GroupEntry{
			Name:        g.Name,
			Description: g.Description,
			Color:       g.Color,
			Icon:        g.Icon,
			Position:    g.Position,
			Members:     keys,
		})
	}
	return defs, entries, nil
}

// writeSnapshot lands the snapshot on disk, retrying transient failures
// (lock contention, racing writers) with exponential backoff.
func (s *Syncer) writeSnapshot(ctx context.Context, col *collection.Store, defs []collection.TagDefinition, groups []collection.GroupEntry) error {
	opts := backoff.NewExponentialBackOff()
	opts.InitialInterval = 50 * time.Millisecond
	opts.MaxElapsedTime = s.retryWindow
	return backoff.Retry(func() error {
		err := col.WriteSnapshot(ctx, defs, groups)
		if err != nil && !types.IsKind(err, types.KindTransientIO) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(opts, ctx))
}

// rewriteTagged applies transform to the frontmatter tag list of every
// given artifact that belongs to the collection, mirroring the result
// into tags_json. Per-artifact failures are logged and skipped.
func (s *Syncer) rewriteTagged(ctx context.Context, col *collection.Store, collectionID string, uuids []string, transform func([]string) []string) {
	for _, id := range uuids {
		ca, err := s.store.GetCollectionArtifact(ctx, collectionID, id)
		if err != nil {
			// Tags are workspace-wide; artifacts outside this collection
			// are some other collection's sync to handle.
			if !types.IsKind(err, types.KindNotFound) {
				debug.Warnf("write-through: join row %s/%s: %v", collectionID, id, err)
			}
			continue
		}
		a, err := s.store.GetArtifact(ctx, id)
		if err != nil {
			debug.Warnf("write-through: artifact %s: %v", id, err)
			continue
		}
		path := manifestFileFor(a.Type, s.absPath(col, ca.Path))
		if path == "" {
			debug.Warnf("write-through: no manifest file for %s at %s", a.Key(), ca.Path)
			continue
		}
		current, err := collection.ReadManifestTags(path)
		if err != nil {
			debug.Warnf("write-through: reading tags of %s: %v", a.Key(), err)
			continue
		}
		next := transform(current)
		if err := col.RewriteManifestTags(ctx, path, next); err != nil {
			debug.Warnf("write-through: rewriting tags of %s: %v", a.Key(), err)
			continue
		}
		if err := s.store.UpdateCollectionArtifactTags(ctx, collectionID, id, next); err != nil {
			debug.Warnf("write-through: caching tags of %s: %v", a.Key(), err)
		}
	}
}

func (s *Syncer) absPath(col *collection.Store, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(col.Root(), filepath.FromSlash(p))
}

// manifestFileFor locates the file carrying an artifact's frontmatter:
// the path itself for file-based artifacts, the signature manifest
// inside it for directory-based ones.
func manifestFileFor(t types.ArtifactType, abs string) string {
	info, err := os.Stat(abs)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		return abs
	}
	sig, ok := discovery.SignatureFor(t)
	if !ok {
		return ""
	}
	for _, m := range sig.Manifests {
		p := filepath.Join(abs, m)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// replaceTag swaps any spelling of oldSlug for newSlug, matching by
// slug so display-cased frontmatter entries still hit.
func replaceTag(tags []string, oldSlug, newSlug string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if types.Slugify(t) == oldSlug {
			t = newSlug
		}
		out = append(out, t)
	}
	return collection.NormalizeTags(out)
}

// addTag appends name unless some spelling of it is already present.
func addTag(tags []string, name string) []string {
	slug := types.Slugify(name)
	for _, t := range tags {
		if types.Slugify(t) == slug {
			return collection.NormalizeTags(tags)
		}
	}
	return collection.NormalizeTags(append(tags, name))
}

// removeTag drops every spelling of slug from the list.
func removeTag(tags []string, slug string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if types.Slugify(t) == slug {
			continue
		}
		out = append(out, t)
	}
	return collection.NormalizeTags(out)
}
