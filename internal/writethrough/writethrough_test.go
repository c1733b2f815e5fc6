package writethrough

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
)

type env struct {
	ctx   context.Context
	store *sqlite.SQLiteStorage
	col   *collection.Store
	sync  *Syncer
}

// newTestEnv wires a fresh store, an initialized collection directory,
// and a syncer with a short retry window so failure tests stay fast.
func newTestEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.UpsertCollection(ctx, &types.Collection{ID: "main", Name: "Main"}); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}

	col := collection.NewStore(t.TempDir())
	if _, err := col.Init(ctx, "Main"); err != nil {
		t.Fatalf("failed to init collection: %v", err)
	}

	s := New(store)
	s.retryWindow = 100 * time.Millisecond
	return &env{ctx: ctx, store: store, col: col, sync: s}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func manifestBody(name string, tags []string) string {
	var b strings.Builder
	b.WriteString("---\nname: " + name + "\n")
	if len(tags) > 0 {
		b.WriteString("tags:\n")
		for _, tag := range tags {
			b.WriteString("  - " + tag + "\n")
		}
	}
	b.WriteString("---\n\n# " + name + "\n")
	return b.String()
}

// seedSkill registers a directory-based skill whose frontmatter lives in
// SKILL.md, joined into the main collection.
func (e *env) seedSkill(t *testing.T, name string, tags []string) (*types.Artifact, string) {
	t.Helper()
	a := &types.Artifact{Type: types.TypeSkill, Name: name}
	if err := e.store.UpsertArtifact(e.ctx, a); err != nil {
		t.Fatalf("UpsertArtifact(%s): %v", name, err)
	}
	rel := "artifacts/skills/" + name
	manifest := filepath.Join(e.col.Root(), filepath.FromSlash(rel), "SKILL.md")
	writeFile(t, manifest, manifestBody(name, tags))
	if err := e.store.UpsertCollectionArtifact(e.ctx, &types.CollectionArtifact{
		CollectionID: "main",
		ArtifactUUID: a.UUID,
		Path:         rel,
		Tags:         tags,
	}); err != nil {
		t.Fatalf("UpsertCollectionArtifact(%s): %v", name, err)
	}
	return a, manifest
}

// seedCommand registers a file-based command whose own file carries the
// frontmatter.
func (e *env) seedCommand(t *testing.T, name string, tags []string) (*types.Artifact, string) {
	t.Helper()
	a := &types.Artifact{Type: types.TypeCommand, Name: name}
	if err := e.store.UpsertArtifact(e.ctx, a); err != nil {
		t.Fatalf("UpsertArtifact(%s): %v", name, err)
	}
	rel := "artifacts/commands/" + name + ".md"
	manifest := filepath.Join(e.col.Root(), filepath.FromSlash(rel))
	writeFile(t, manifest, manifestBody(name, tags))
	if err := e.store.UpsertCollectionArtifact(e.ctx, &types.CollectionArtifact{
		CollectionID: "main",
		ArtifactUUID: a.UUID,
		Path:         rel,
		Tags:         tags,
	}); err != nil {
		t.Fatalf("UpsertCollectionArtifact(%s): %v", name, err)
	}
	return a, manifest
}

func (e *env) tag(t *testing.T, a *types.Artifact, tagID int64) {
	t.Helper()
	if err := e.store.TagArtifact(e.ctx, a.UUID, tagID); err != nil {
		t.Fatalf("TagArtifact(%s): %v", a.Name, err)
	}
}

func readTags(t *testing.T, path string) []string {
	t.Helper()
	tags, err := collection.ReadManifestTags(path)
	if err != nil {
		t.Fatalf("ReadManifestTags(%s): %v", path, err)
	}
	return tags
}

func sameTags(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSyncManifestSnapshot(t *testing.T) {
	e := newTestEnv(t)

	if _, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Backend", Color: "#ff0000", Description: "server side"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if _, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Frontend"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	a, _ := e.seedCommand(t, "deploy", nil)
	g, err := e.store.CreateGroup(e.ctx, &types.Group{CollectionID: "main", Name: "Core", Icon: "star"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := e.store.AddGroupMember(e.ctx, g.ID, a.UUID, 0); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}

	if err := e.sync.SyncManifest(e.ctx, e.col, "main"); err != nil {
		t.Fatalf("SyncManifest: %v", err)
	}

	m, err := e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.TagDefinitions) != 2 {
		t.Fatalf("got %d tag definitions; want 2", len(m.TagDefinitions))
	}
	var backend *collection.TagDefinition
	for i := range m.TagDefinitions {
		if m.TagDefinitions[i].Slug == "backend" {
			backend = &m.TagDefinitions[i]
		}
	}
	if backend == nil {
		t.Fatal("backend tag definition missing from manifest")
	}
	if backend.Color != "#ff0000" || backend.Description != "server side" {
		t.Errorf("backend definition = %+v", backend)
	}

	if len(m.Groups) != 1 {
		t.Fatalf("got %d groups; want 1", len(m.Groups))
	}
	if m.Groups[0].Name != "Core" || m.Groups[0].Icon != "star" {
		t.Errorf("group = %+v", m.Groups[0])
	}
	if !sameTags(m.Groups[0].Members, []string{"command:deploy"}) {
		t.Errorf("group members = %v; want [command:deploy]", m.Groups[0].Members)
	}
}

func TestSyncManifestReportsFailure(t *testing.T) {
	e := newTestEnv(t)
	e.sync.retryWindow = 20 * time.Millisecond

	// A file where the collection root should be makes every write
	// attempt fail.
	blocked := filepath.Join(t.TempDir(), "root")
	writeFile(t, blocked, "not a directory")

	err := e.sync.SyncManifest(e.ctx, collection.NewStore(blocked), "main")
	if !types.IsKind(err, types.KindWriteThroughFailure) {
		t.Errorf("error kind = %q; want %q", types.KindOf(err), types.KindWriteThroughFailure)
	}
}

func TestRenameTagPropagates(t *testing.T) {
	e := newTestEnv(t)

	release, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Release"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	git, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Git"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	skill, skillManifest := e.seedSkill(t, "git-helper", []string{"release", "git"})
	cmd, cmdManifest := e.seedCommand(t, "deploy", []string{"release"})
	e.tag(t, skill, release.ID)
	e.tag(t, skill, git.ID)
	e.tag(t, cmd, release.ID)

	renamed, err := e.sync.RenameTag(e.ctx, e.col, "main", "release", "Ship It")
	if err != nil {
		t.Fatalf("RenameTag: %v", err)
	}
	if renamed.Slug != "ship-it" || renamed.Name != "Ship It" {
		t.Errorf("renamed = %s/%s; want ship-it/Ship It", renamed.Slug, renamed.Name)
	}

	// Frontmatter in both manifest shapes, position preserved.
	if got := readTags(t, skillManifest); !sameTags(got, []string{"ship-it", "git"}) {
		t.Errorf("skill tags = %v; want [ship-it git]", got)
	}
	if got := readTags(t, cmdManifest); !sameTags(got, []string{"ship-it"}) {
		t.Errorf("command tags = %v; want [ship-it]", got)
	}

	// Cached tags_json followed the rewrite.
	ca, err := e.store.GetCollectionArtifact(e.ctx, "main", skill.UUID)
	if err != nil {
		t.Fatalf("GetCollectionArtifact: %v", err)
	}
	if !sameTags(ca.Tags, []string{"ship-it", "git"}) {
		t.Errorf("cached tags = %v; want [ship-it git]", ca.Tags)
	}

	// Manifest snapshot refreshed.
	m, err := e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	slugs := make([]string, 0, len(m.TagDefinitions))
	for _, d := range m.TagDefinitions {
		slugs = append(slugs, d.Slug)
	}
	if !sameTags(slugs, []string{"git", "ship-it"}) {
		t.Errorf("manifest tag slugs = %v; want [git ship-it]", slugs)
	}
}

func TestRenameTagConflictPropagates(t *testing.T) {
	e := newTestEnv(t)

	release, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Release"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if _, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Ship It"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	cmd, cmdManifest := e.seedCommand(t, "deploy", []string{"release"})
	e.tag(t, cmd, release.ID)

	_, err = e.sync.RenameTag(e.ctx, e.col, "main", "release", "Ship It")
	if !types.IsKind(err, types.KindConflict) {
		t.Fatalf("error kind = %q; want %q", types.KindOf(err), types.KindConflict)
	}

	if got := readTags(t, cmdManifest); !sameTags(got, []string{"release"}) {
		t.Errorf("frontmatter changed on failed rename: %v", got)
	}
}

func TestTagArtifactPropagates(t *testing.T) {
	e := newTestEnv(t)
	cmd, cmdManifest := e.seedCommand(t, "deploy", nil)

	tag, err := e.sync.TagArtifact(e.ctx, e.col, "main", cmd.UUID, "Quality")
	if err != nil {
		t.Fatalf("TagArtifact: %v", err)
	}
	if tag.Slug != "quality" {
		t.Errorf("tag slug = %q; want %q", tag.Slug, "quality")
	}

	if got := readTags(t, cmdManifest); !sameTags(got, []string{"Quality"}) {
		t.Errorf("frontmatter tags = %v; want [Quality]", got)
	}
	ca, err := e.store.GetCollectionArtifact(e.ctx, "main", cmd.UUID)
	if err != nil {
		t.Fatalf("GetCollectionArtifact: %v", err)
	}
	if !sameTags(ca.Tags, []string{"Quality"}) {
		t.Errorf("cached tags = %v; want [Quality]", ca.Tags)
	}
	attached, err := e.store.GetArtifactTags(e.ctx, cmd.UUID)
	if err != nil {
		t.Fatalf("GetArtifactTags: %v", err)
	}
	if len(attached) != 1 || attached[0].Slug != "quality" {
		t.Errorf("attached tags = %v; want just quality", attached)
	}

	m, err := e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.TagDefinitions) != 1 || m.TagDefinitions[0].Slug != "quality" {
		t.Errorf("manifest tag definitions = %v; want just quality", m.TagDefinitions)
	}

	// Re-tagging with another spelling of the same slug changes nothing.
	if _, err := e.sync.TagArtifact(e.ctx, e.col, "main", cmd.UUID, "quality"); err != nil {
		t.Fatalf("TagArtifact repeat: %v", err)
	}
	if got := readTags(t, cmdManifest); !sameTags(got, []string{"Quality"}) {
		t.Errorf("frontmatter tags after repeat = %v; want [Quality]", got)
	}
}

func TestUntagArtifactPropagates(t *testing.T) {
	e := newTestEnv(t)

	quality, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Quality"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	skill, skillManifest := e.seedSkill(t, "reviewer", []string{"Quality", "ai"})
	e.tag(t, skill, quality.ID)

	if err := e.sync.UntagArtifact(e.ctx, e.col, "main", skill.UUID, "quality"); err != nil {
		t.Fatalf("UntagArtifact: %v", err)
	}

	if got := readTags(t, skillManifest); !sameTags(got, []string{"ai"}) {
		t.Errorf("frontmatter tags = %v; want [ai]", got)
	}
	attached, err := e.store.GetArtifactTags(e.ctx, skill.UUID)
	if err != nil {
		t.Fatalf("GetArtifactTags: %v", err)
	}
	if len(attached) != 0 {
		t.Errorf("attached tags = %v; want none", attached)
	}

	// Detaching never deletes the definition itself.
	if _, err := e.store.GetTagBySlug(e.ctx, "quality"); err != nil {
		t.Errorf("tag definition gone after untag: %v", err)
	}

	if err := e.sync.UntagArtifact(e.ctx, e.col, "main", skill.UUID, "no-such-tag"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("UntagArtifact(unknown) error = %v; want not_found", err)
	}
}

func TestDeleteTagPropagates(t *testing.T) {
	e := newTestEnv(t)

	release, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Release"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	git, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Git"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	skill, skillManifest := e.seedSkill(t, "git-helper", []string{"release", "git"})
	e.tag(t, skill, release.ID)
	e.tag(t, skill, git.ID)

	if err := e.sync.DeleteTag(e.ctx, e.col, "main", "release"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}

	if got := readTags(t, skillManifest); !sameTags(got, []string{"git"}) {
		t.Errorf("skill tags = %v; want [git]", got)
	}
	ca, err := e.store.GetCollectionArtifact(e.ctx, "main", skill.UUID)
	if err != nil {
		t.Fatalf("GetCollectionArtifact: %v", err)
	}
	if !sameTags(ca.Tags, []string{"git"}) {
		t.Errorf("cached tags = %v; want [git]", ca.Tags)
	}

	m, err := e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, d := range m.TagDefinitions {
		if d.Slug == "release" {
			t.Error("deleted tag still in manifest snapshot")
		}
	}
	if _, err := e.store.GetTagBySlug(e.ctx, "release"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("GetTagBySlug after delete: %v", err)
	}
}

// recoveryManifest is written by hand so stale colors and positions
// survive to disk the way an old skillmeat version might have left them.
const recoveryManifest = `[collection]
name = "Main"
version = "1.0"
created = 2025-03-01T10:00:00Z
updated = 2025-03-02T10:00:00Z

[[tag_definitions]]
name = "Backend"
slug = "backend"
color = "#ff0000"

[[tag_definitions]]
name = "Frontend"
slug = "frontend"
color = "not-a-color"

[[groups]]
name = "Core"
description = "daily drivers"
position = 5
members = ["command:deploy", "agent:ghost"]
`

func TestRecoverCollection(t *testing.T) {
	e := newTestEnv(t)
	e.seedCommand(t, "deploy", nil)
	writeFile(t, e.col.ManifestPath(), recoveryManifest)

	result, err := e.sync.RecoverCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("RecoverCollection: %v", err)
	}
	if result.SkippedReason != "" {
		t.Errorf("SkippedReason = %q; want empty", result.SkippedReason)
	}
	if result.TagsImported != 2 || result.GroupsImported != 1 {
		t.Errorf("imported tags/groups = %d/%d; want 2/1", result.TagsImported, result.GroupsImported)
	}
	if result.MembersSkipped != 1 {
		t.Errorf("MembersSkipped = %d; want 1", result.MembersSkipped)
	}

	backend, err := e.store.GetTagBySlug(e.ctx, "backend")
	if err != nil {
		t.Fatalf("GetTagBySlug(backend): %v", err)
	}
	if backend.Color != "#ff0000" {
		t.Errorf("backend color = %q; want #ff0000", backend.Color)
	}
	frontend, err := e.store.GetTagBySlug(e.ctx, "frontend")
	if err != nil {
		t.Fatalf("GetTagBySlug(frontend): %v", err)
	}
	if frontend.Color != "" {
		t.Errorf("bogus color survived recovery: %q", frontend.Color)
	}

	groups, err := e.store.ListGroups(e.ctx, "main")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups; want 1", len(groups))
	}
	if groups[0].Name != "Core" || groups[0].Description != "daily drivers" {
		t.Errorf("group = %+v", groups[0])
	}
	if groups[0].Position != 0 {
		t.Errorf("group position = %d; want 0 (reassigned in manifest order)", groups[0].Position)
	}
	members, err := e.store.GetGroupMembers(e.ctx, groups[0].ID)
	if err != nil {
		t.Fatalf("GetGroupMembers: %v", err)
	}
	if len(members) != 1 || members[0].Position != 0 {
		t.Errorf("members = %+v; want one member at position 0", members)
	}
}

func TestRecoverIntoFreshCache(t *testing.T) {
	// A replaced registry file has no collection row and no artifact
	// rows. Recovery restores the collection row first so the group
	// import has something to reference, and drops every member.
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	col := collection.NewStore(t.TempDir())
	writeFile(t, col.ManifestPath(), recoveryManifest)

	result, err := New(store).RecoverCollection(ctx, col, "main")
	if err != nil {
		t.Fatalf("RecoverCollection: %v", err)
	}
	if result.TagsImported != 2 || result.GroupsImported != 1 {
		t.Errorf("imported tags/groups = %d/%d; want 2/1", result.TagsImported, result.GroupsImported)
	}
	if result.MembersSkipped != 2 {
		t.Errorf("MembersSkipped = %d; want 2", result.MembersSkipped)
	}

	c, err := store.GetCollection(ctx, "main")
	if err != nil {
		t.Fatalf("GetCollection after recovery: %v", err)
	}
	if c.Name != "Main" || c.Path != col.Root() {
		t.Errorf("collection row = %q at %q; want Main at %q", c.Name, c.Path, col.Root())
	}

	groups, err := store.ListGroups(ctx, "main")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "Core" {
		t.Fatalf("groups = %+v; want just Core", groups)
	}
	members, err := store.GetGroupMembers(ctx, groups[0].ID)
	if err != nil {
		t.Fatalf("GetGroupMembers: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members = %+v; want none, nothing resolves in a fresh cache", members)
	}
}

func TestRecoverCollectionSkipsWhenDBAuthoritative(t *testing.T) {
	e := newTestEnv(t)
	e.seedCommand(t, "deploy", nil)
	writeFile(t, e.col.ManifestPath(), recoveryManifest)

	if _, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Live", Color: "#00ff00"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if _, err := e.store.CreateGroup(e.ctx, &types.Group{CollectionID: "main", Name: "Existing"}); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	result, err := e.sync.RecoverCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("RecoverCollection: %v", err)
	}
	if !result.TagsSkipped || !result.GroupsSkipped {
		t.Errorf("skipped tags/groups = %v/%v; want true/true", result.TagsSkipped, result.GroupsSkipped)
	}
	if result.TagsImported != 0 || result.GroupsImported != 0 {
		t.Errorf("imported tags/groups = %d/%d; want 0/0", result.TagsImported, result.GroupsImported)
	}

	if _, err := e.store.GetTagBySlug(e.ctx, "backend"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("manifest tag imported despite colored tag in cache: %v", err)
	}
	groups, err := e.store.ListGroups(e.ctx, "main")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "Existing" {
		t.Errorf("groups = %+v; want only Existing", groups)
	}
}

func TestRecoverMissingManifest(t *testing.T) {
	e := newTestEnv(t)
	if err := os.Remove(e.col.ManifestPath()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	result, err := e.sync.RecoverCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("RecoverCollection: %v", err)
	}
	if result.SkippedReason != "no_collection_toml" {
		t.Errorf("SkippedReason = %q; want no_collection_toml", result.SkippedReason)
	}
}

func TestRecoverBadManifest(t *testing.T) {
	e := newTestEnv(t)
	writeFile(t, e.col.ManifestPath(), "[collection\nname = oops")

	result, err := e.sync.RecoverCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("RecoverCollection: %v", err)
	}
	if result.SkippedReason != "toml_read_error" {
		t.Errorf("SkippedReason = %q; want toml_read_error", result.SkippedReason)
	}
}

func TestRecoverIdempotent(t *testing.T) {
	e := newTestEnv(t)
	e.seedCommand(t, "deploy", nil)
	writeFile(t, e.col.ManifestPath(), recoveryManifest)

	if _, err := e.sync.RecoverCollection(e.ctx, e.col, "main"); err != nil {
		t.Fatalf("first RecoverCollection: %v", err)
	}
	result, err := e.sync.RecoverCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("second RecoverCollection: %v", err)
	}

	// The first pass imported a colored tag and a group, so the second
	// sees an authoritative cache and imports nothing.
	if !result.TagsSkipped || !result.GroupsSkipped {
		t.Errorf("skipped tags/groups = %v/%v; want true/true", result.TagsSkipped, result.GroupsSkipped)
	}
	tags, err := e.store.ListTags(e.ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("got %d tags after second recovery; want 2", len(tags))
	}
	groups, err := e.store.ListGroups(e.ctx, "main")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("got %d groups after second recovery; want 1", len(groups))
	}
}

func TestSyncArtifactEntry(t *testing.T) {
	e := newTestEnv(t)
	a, _ := e.seedSkill(t, "reviewer", []string{"quality"})

	if err := e.sync.SyncArtifactEntry(e.ctx, e.col, "main", a.UUID); err != nil {
		t.Fatalf("SyncArtifactEntry: %v", err)
	}

	m, err := e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Artifacts) != 1 {
		t.Fatalf("got %d manifest artifacts; want 1", len(m.Artifacts))
	}
	entry := m.Artifacts[0]
	if entry.Type != "skill" || entry.Name != "reviewer" {
		t.Errorf("entry = %s:%s; want skill:reviewer", entry.Type, entry.Name)
	}
	if entry.Path != "artifacts/skills/reviewer" {
		t.Errorf("entry path = %q; want %q", entry.Path, "artifacts/skills/reviewer")
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != "quality" {
		t.Errorf("entry tags = %v; want [quality]", entry.Tags)
	}

	// Re-syncing the same artifact updates in place.
	if err := e.sync.SyncArtifactEntry(e.ctx, e.col, "main", a.UUID); err != nil {
		t.Fatalf("second SyncArtifactEntry: %v", err)
	}
	m, err = e.col.Load(e.ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(m.Artifacts) != 1 {
		t.Errorf("got %d manifest artifacts after re-sync; want 1", len(m.Artifacts))
	}
}

func TestSyncArtifactEntryUnknownArtifact(t *testing.T) {
	e := newTestEnv(t)
	err := e.sync.SyncArtifactEntry(e.ctx, e.col, "main", "no-such-uuid")
	if !types.IsKind(err, types.KindWriteThroughFailure) {
		t.Errorf("err = %v; want write_through_failure", err)
	}
}

// driftManifest layers new definitions on top of ones the cache already
// holds, the shape an external edit leaves behind.
const driftManifest = `[collection]
name = "Main"
version = "1.0"
created = 2025-03-01T10:00:00Z
updated = 2025-03-03T10:00:00Z

[[tag_definitions]]
name = "Live"
slug = "live"
color = "#123456"

[[tag_definitions]]
name = "Backend"
slug = "backend"
color = "#ff0000"

[[groups]]
name = "Existing"
position = 0

[[groups]]
name = "Core"
description = "daily drivers"
position = 7
members = ["command:deploy", "agent:ghost"]
`

func TestCheckDrift(t *testing.T) {
	e := newTestEnv(t)
	if err := e.sync.CheckDrift(e.ctx, e.col, "main"); err != nil {
		t.Fatalf("CheckDrift on fresh collection: %v", err)
	}

	writeFile(t, e.col.ManifestPath(), recoveryManifest)
	err := e.sync.CheckDrift(e.ctx, e.col, "main")
	if !types.IsKind(err, types.KindCacheDrift) {
		t.Fatalf("CheckDrift = %v; want cache_drift", err)
	}
	if types.DetailOf(err) != "manifest_ahead_of_cache" {
		t.Errorf("detail = %q; want manifest_ahead_of_cache", types.DetailOf(err))
	}
}

func TestRefreshCollectionRepairsDrift(t *testing.T) {
	e := newTestEnv(t)
	e.seedCommand(t, "deploy", nil)
	if _, err := e.store.CreateTag(e.ctx, &types.Tag{Name: "Live", Color: "#00ff00"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if _, err := e.store.CreateGroup(e.ctx, &types.Group{CollectionID: "main", Name: "Existing"}); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	writeFile(t, e.col.ManifestPath(), driftManifest)

	res, err := e.sync.RefreshCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("RefreshCollection: %v", err)
	}
	if res.TagsImported != 1 || res.GroupsImported != 1 {
		t.Errorf("imported tags/groups = %d/%d; want 1/1", res.TagsImported, res.GroupsImported)
	}
	if res.MembersSkipped != 1 {
		t.Errorf("MembersSkipped = %d; want 1", res.MembersSkipped)
	}

	live, err := e.store.GetTagBySlug(e.ctx, "live")
	if err != nil {
		t.Fatalf("GetTagBySlug(live): %v", err)
	}
	if live.Color != "#00ff00" {
		t.Errorf("cached tag color = %q; want #00ff00 untouched", live.Color)
	}
	if _, err := e.store.GetTagBySlug(e.ctx, "backend"); err != nil {
		t.Errorf("backend tag not imported: %v", err)
	}

	groups, err := e.store.ListGroups(e.ctx, "main")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups; want 2", len(groups))
	}
	var core *types.Group
	for _, g := range groups {
		if g.Name == "Core" {
			core = g
		}
	}
	if core == nil {
		t.Fatalf("Core group not imported; groups = %+v", groups)
	}
	if core.Position != 1 {
		t.Errorf("Core position = %d; want 1, appended after cached groups", core.Position)
	}
	members, err := e.store.GetGroupMembers(e.ctx, core.ID)
	if err != nil {
		t.Fatalf("GetGroupMembers: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Core members = %+v; want just the resolvable one", members)
	}

	if err := e.sync.CheckDrift(e.ctx, e.col, "main"); err != nil {
		t.Errorf("CheckDrift after refresh: %v", err)
	}
	again, err := e.sync.RefreshCollection(e.ctx, e.col, "main")
	if err != nil {
		t.Fatalf("second RefreshCollection: %v", err)
	}
	if !again.InSync() {
		t.Errorf("second refresh imported %d tag(s) %d group(s); want none", again.TagsImported, again.GroupsImported)
	}
}
