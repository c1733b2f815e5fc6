package writethrough

import (
	"context"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// RecoveryResult reports what one recovery pass imported and what it
// left alone.
type RecoveryResult struct {
	CollectionID   string `json:"collection_id"`
	SkippedReason  string `json:"skipped_reason,omitempty"`
	TagsSkipped    bool   `json:"tags_skipped"`
	GroupsSkipped  bool   `json:"groups_skipped"`
	TagsImported   int    `json:"tags_imported"`
	GroupsImported int    `json:"groups_imported"`
	MembersSkipped int    `json:"members_skipped"`
}

// RecoverCollection rebuilds droppable cache state (the collection row,
// tag definitions, groups) from collection.toml after a cache loss. The
// cache stays authoritative: if any tag already carries a color the
// manifest's tag definitions are assumed stale and skipped, and likewise
// for groups when the collection already has any. A missing or
// unreadable manifest skips the whole collection rather than failing
// the rebuild.
func (s *Syncer) RecoverCollection(ctx context.Context, col *collection.Store, collectionID string) (*RecoveryResult, error) {
	result := &RecoveryResult{CollectionID: collectionID}

	m, err := col.Load(ctx)
	if err != nil {
		switch types.DetailOf(err) {
		case "no_collection_toml", "toml_read_error":
			result.SkippedReason = types.DetailOf(err)
			debug.Warnf("recovery: skipping %s: %v", collectionID, err)
			return result, nil
		}
		return nil, err
	}

	// Group rows reference the collection row, so a rebuilt cache needs
	// it back before any group import.
	if err := s.store.UpsertCollection(ctx, &types.Collection{
		ID:   collectionID,
		Name: m.Collection.Name,
		Path: col.Root(),
	}); err != nil {
		return nil, err
	}

	if err := s.recoverTags(ctx, m, result); err != nil {
		return nil, err
	}
	if err := s.recoverGroups(ctx, collectionID, m, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Syncer) recoverTags(ctx context.Context, m *collection.Manifest, result *RecoveryResult) error {
	colored, err := s.store.AnyTagWithColor(ctx)
	if err != nil {
		return err
	}
	if colored {
		result.TagsSkipped = true
		return nil
	}
	for _, def := range m.TagDefinitions {
		slug := def.Slug
		if slug == "" {
			slug = types.Slugify(def.Name)
		}
		if slug == "" {
			debug.Warnf("recovery: tag definition %q has no usable slug", def.Name)
			continue
		}
		_, err := s.store.CreateTag(ctx, &types.Tag{
			Name:        def.Name,
			Slug:        slug,
			Color:       collection.NormalizeColor(def.Color),
			Description: def.Description,
		})
		if err != nil {
			return err
		}
		result.TagsImported++
	}
	return nil
}

func (s *Syncer) recoverGroups(ctx context.Context, collectionID string, m *collection.Manifest, result *RecoveryResult) error {
	n, err := s.store.CountGroups(ctx, collectionID)
	if err != nil {
		return err
	}
	if n > 0 {
		result.GroupsSkipped = true
		return nil
	}
	// Positions restart from zero in manifest order; whatever the
	// manifest recorded may be stale or sparse.
	for i, entry := range m.Groups {
		skipped, err := s.importGroupEntry(ctx, collectionID, entry, i)
		result.MembersSkipped += skipped
		if err != nil {
			return err
		}
		result.GroupsImported++
	}
	return nil
}

// importGroupEntry creates one cached group from a manifest entry and
// resolves its member keys against the registry. Members that do not
// parse or do not resolve are dropped with a warning; the drop count is
// returned alongside any hard error.
func (s *Syncer) importGroupEntry(ctx context.Context, collectionID string, entry collection.GroupEntry, position int) (int, error) {
	g, err := s.store.CreateGroup(ctx, &types.Group{
		CollectionID: collectionID,
		Name:         entry.Name,
		Description:  entry.Description,
		Color:        entry.Color,
		Icon:         entry.Icon,
		Position:     position,
	})
	if err != nil {
		return 0, err
	}

	skipped := 0
	pos := 0
	for _, key := range entry.Members {
		t, name, err := types.ParseKey(key)
		if err != nil {
			debug.Warnf("group %s member %q: %v", entry.Name, key, err)
			skipped++
			continue
		}
		a, err := s.store.FindArtifactByName(ctx, name, t)
		if err != nil {
			return skipped, err
		}
		if a == nil {
			debug.Warnf("group %s member %s not in registry", entry.Name, key)
			skipped++
			continue
		}
		if err := s.store.AddGroupMember(ctx, g.ID, a.UUID, pos); err != nil {
			return skipped, err
		}
		pos++
	}
	return skipped, nil
}

// missingFromCache returns the manifest tag definitions and groups that
// have no cache row yet. Tag definitions whose name slugs to nothing are
// ignored, matching recovery.
func (s *Syncer) missingFromCache(ctx context.Context, m *collection.Manifest, collectionID string) ([]collection.TagDefinition, []collection.GroupEntry, error) {
	var tags []collection.TagDefinition
	for _, def := range m.TagDefinitions {
		slug := def.Slug
		if slug == "" {
			slug = types.Slugify(def.Name)
		}
		if slug == "" {
			continue
		}
		_, err := s.store.GetTagBySlug(ctx, slug)
		if err == nil {
			continue
		}
		if !types.IsKind(err, types.KindNotFound) {
			return nil, nil, err
		}
		tags = append(tags, def)
	}

	cached, err := s.store.ListGroups(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}
	have := make(map[string]bool, len(cached))
	for _, g := range cached {
		have[g.Name] = true
	}
	var groups []collection.GroupEntry
	for _, entry := range m.Groups {
		if !have[entry.Name] {
			groups = append(groups, entry)
		}
	}
	return tags, groups, nil
}

// CheckDrift compares collection.toml against the cache and reports tag
// definitions or groups the manifest carries that the cache has lost,
// which happens when the manifest is edited outside sm. A non-nil error
// of kind cache_drift means RefreshCollection can repair the gap.
func (s *Syncer) CheckDrift(ctx context.Context, col *collection.Store, collectionID string) error {
	const op = "writethrough.CheckDrift"
	m, err := col.Load(ctx)
	if err != nil {
		return err
	}
	tags, groups, err := s.missingFromCache(ctx, m, collectionID)
	if err != nil {
		return err
	}
	if len(tags) == 0 && len(groups) == 0 {
		return nil
	}
	return types.NewDetailError(types.KindCacheDrift, op, "manifest_ahead_of_cache",
		"collection.toml carries %d tag(s) and %d group(s) the cache does not",
		len(tags), len(groups))
}

// RefreshResult reports what one drift repair imported into the cache.
type RefreshResult struct {
	CollectionID   string `json:"collection_id"`
	TagsImported   int    `json:"tags_imported"`
	GroupsImported int    `json:"groups_imported"`
	MembersSkipped int    `json:"members_skipped"`
}

// InSync reports whether the repair found nothing missing.
func (r *RefreshResult) InSync() bool {
	return r.TagsImported == 0 && r.GroupsImported == 0
}

// RefreshCollection repairs cache drift after an external manifest edit.
// Tag definitions and groups present in collection.toml but absent from
// the cache are imported; rows the cache already has are never touched,
// so refreshing an in-sync cache is a no-op. Unlike RecoverCollection
// this runs against a populated cache.
func (s *Syncer) RefreshCollection(ctx context.Context, col *collection.Store, collectionID string) (*RefreshResult, error) {
	result := &RefreshResult{CollectionID: collectionID}

	m, err := col.Load(ctx)
	if err != nil {
		return nil, err
	}
	tags, groups, err := s.missingFromCache(ctx, m, collectionID)
	if err != nil {
		return nil, err
	}

	for _, def := range tags {
		slug := def.Slug
		if slug == "" {
			slug = types.Slugify(def.Name)
		}
		if _, err := s.store.CreateTag(ctx, &types.Tag{
			Name:        def.Name,
			Slug:        slug,
			Color:       collection.NormalizeColor(def.Color),
			Description: def.Description,
		}); err != nil {
			return nil, err
		}
		result.TagsImported++
	}

	next, err := s.store.CountGroups(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	for _, entry := range groups {
		skipped, err := s.importGroupEntry(ctx, collectionID, entry, next)
		result.MembersSkipped += skipped
		if err != nil {
			return nil, err
		}
		result.GroupsImported++
		next++
	}
	return result, nil
}
