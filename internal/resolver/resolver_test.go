package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStorage {
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
	return store
}

func makeArtifact(t *testing.T, store *sqlite.SQLiteStorage, name string) string {
	t.Helper()
	a := &types.Artifact{Type: types.TypeSkill, Name: name}
	if err := store.UpsertArtifact(context.Background(), a); err != nil {
		t.Fatalf("UpsertArtifact(%s): %v", name, err)
	}
	return a.UUID
}

func makeSet(t *testing.T, store *sqlite.SQLiteStorage, name string) int64 {
	t.Helper()
	ds, err := store.CreateSet(context.Background(), &types.DeploymentSet{Name: name})
	if err != nil {
		t.Fatalf("CreateSet(%s): %v", name, err)
	}
	return ds.ID
}

func addArtifactMember(t *testing.T, store *sqlite.SQLiteStorage, setID int64, pos int, uuid string) {
	t.Helper()
	err := store.AddSetMember(context.Background(), &types.DeploymentSetMember{
		SetID: setID, Position: pos, Kind: types.MemberArtifact, ArtifactUUID: uuid,
	})
	if err != nil {
		t.Fatalf("AddSetMember(artifact): %v", err)
	}
}

func addSetMember(t *testing.T, store *sqlite.SQLiteStorage, setID int64, pos int, childID int64) {
	t.Helper()
	err := store.AddSetMember(context.Background(), &types.DeploymentSetMember{
		SetID: setID, Position: pos, Kind: types.MemberSet, ChildSetID: childID,
	})
	if err != nil {
		t.Fatalf("AddSetMember(set): %v", err)
	}
}

func wantOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("resolved %d artifacts; want %d (%v)", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s; want %s", i, got[i], want[i])
		}
	}
}

func TestResolveFollowsPositionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := makeArtifact(t, store, "alpha")
	b := makeArtifact(t, store, "bravo")
	c := makeArtifact(t, store, "charlie")
	set := makeSet(t, store, "core")

	// Inserted out of order; positions decide.
	addArtifactMember(t, store, set, 1, b)
	addArtifactMember(t, store, set, 0, a)
	addArtifactMember(t, store, set, 2, c)

	got, err := ResolveSet(ctx, store, set, 0)
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	wantOrder(t, got, []string{a, b, c})
}

func TestResolveExpandsGroups(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := makeArtifact(t, store, "alpha")
	b := makeArtifact(t, store, "bravo")
	c := makeArtifact(t, store, "charlie")
	d := makeArtifact(t, store, "delta")

	g, err := store.CreateGroup(ctx, &types.Group{CollectionID: "main", Name: "Middle"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := store.AddGroupMember(ctx, g.ID, b, 0); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	if err := store.AddGroupMember(ctx, g.ID, c, 1); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}

	set := makeSet(t, store, "core")
	addArtifactMember(t, store, set, 0, a)
	if err := store.AddSetMember(ctx, &types.DeploymentSetMember{
		SetID: set, Position: 1, Kind: types.MemberGroup, GroupID: g.ID,
	}); err != nil {
		t.Fatalf("AddSetMember(group): %v", err)
	}
	addArtifactMember(t, store, set, 2, d)

	got, err := ResolveSet(ctx, store, set, 0)
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	wantOrder(t, got, []string{a, b, c, d})
}

func TestResolveRecursesNestedSets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := makeArtifact(t, store, "alpha")
	b := makeArtifact(t, store, "bravo")
	d := makeArtifact(t, store, "delta")

	inner := makeSet(t, store, "inner")
	addArtifactMember(t, store, inner, 0, a)
	addArtifactMember(t, store, inner, 1, b)

	root := makeSet(t, store, "root")
	addSetMember(t, store, root, 0, inner)
	addArtifactMember(t, store, root, 1, d)

	got, err := ResolveSet(ctx, store, root, 0)
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	wantOrder(t, got, []string{a, b, d})
}

func TestResolveDeduplicatesFirstSeen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := makeArtifact(t, store, "alpha")
	b := makeArtifact(t, store, "bravo")
	c := makeArtifact(t, store, "charlie")

	g, err := store.CreateGroup(ctx, &types.Group{CollectionID: "main", Name: "Front"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := store.AddGroupMember(ctx, g.ID, a, 0); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	if err := store.AddGroupMember(ctx, g.ID, b, 1); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}

	inner := makeSet(t, store, "inner")
	addArtifactMember(t, store, inner, 0, a)
	addArtifactMember(t, store, inner, 1, c)

	// The same artifact arrives through the group, directly, and through
	// the nested set; only the group's first sighting counts.
	root := makeSet(t, store, "root")
	if err := store.AddSetMember(ctx, &types.DeploymentSetMember{
		SetID: root, Position: 0, Kind: types.MemberGroup, GroupID: g.ID,
	}); err != nil {
		t.Fatalf("AddSetMember(group): %v", err)
	}
	addArtifactMember(t, store, root, 1, a)
	addSetMember(t, store, root, 2, inner)

	got, err := ResolveSet(ctx, store, root, 0)
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	wantOrder(t, got, []string{a, b, c})
}

func TestResolveDepthExceeded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// s1 -> s2 -> s3 -> s4 is a path of length 4.
	ids := make([]int64, 4)
	for i := range ids {
		ids[i] = makeSet(t, store, fmt.Sprintf("s%d", i+1))
	}
	for i := 0; i < len(ids)-1; i++ {
		addSetMember(t, store, ids[i], 0, ids[i+1])
	}

	_, err := ResolveSet(ctx, store, ids[0], 3)
	if !types.IsKind(err, types.KindDepthExceeded) {
		t.Fatalf("error kind = %q; want %q", types.KindOf(err), types.KindDepthExceeded)
	}
	wantPath := fmt.Sprintf("%d -> %d -> %d -> %d", ids[0], ids[1], ids[2], ids[3])
	if !strings.Contains(err.Error(), wantPath) {
		t.Errorf("error %q does not carry the traversal path %q", err, wantPath)
	}

	// The same hierarchy resolves fine with the limit raised.
	if _, err := ResolveSet(ctx, store, ids[0], 4); err != nil {
		t.Errorf("ResolveSet with sufficient depth: %v", err)
	}
}

func TestResolveUnknownSet(t *testing.T) {
	store := newTestStore(t)
	_, err := ResolveSet(context.Background(), store, 999, 0)
	if !types.IsKind(err, types.KindNotFound) {
		t.Errorf("error kind = %q; want %q", types.KindOf(err), types.KindNotFound)
	}
}

func TestResolveEmptySet(t *testing.T) {
	store := newTestStore(t)
	set := makeSet(t, store, "empty")

	got, err := ResolveSet(context.Background(), store, set, 0)
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("resolved %v from an empty set", got)
	}
}
