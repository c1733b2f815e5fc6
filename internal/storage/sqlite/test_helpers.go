package sqlite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/skillmeat/skillmeat/internal/types"
)

// testEnv provides a test environment with common setup and helpers.
// Use newTestEnv(t) to create a test environment with automatic cleanup.
type testEnv struct {
	t     *testing.T
	Store *SQLiteStorage
	Ctx   context.Context
}

// newTestEnv creates a new test environment with a configured store.
// The store is automatically cleaned up when the test completes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t, "")
	return &testEnv{
		t:     t,
		Store: store,
		Ctx:   context.Background(),
	}
}

// CreateArtifact creates a test skill artifact with the given name.
// Returns the artifact with its UUID populated.
func (e *testEnv) CreateArtifact(name string) *types.Artifact {
	e.t.Helper()
	return e.CreateArtifactWith(name, types.TypeSkill, "")
}

// CreateArtifactWith creates a test artifact with specified attributes.
func (e *testEnv) CreateArtifactWith(name string, typ types.ArtifactType, description string) *types.Artifact {
	e.t.Helper()
	a := &types.Artifact{
		Type:        typ,
		Name:        name,
		Description: description,
	}
	if err := e.Store.UpsertArtifact(e.Ctx, a); err != nil {
		e.t.Fatalf("UpsertArtifact(%q) failed: %v", name, err)
	}
	return a
}

// AddVersion appends a version whose content hash is derived from content.
// Returns the stored version with lineage populated.
func (e *testEnv) AddVersion(a *types.Artifact, content, parentHash string, origin types.ChangeOrigin) *types.ArtifactVersion {
	e.t.Helper()
	v, err := e.Store.AppendVersion(e.Ctx, &types.ArtifactVersion{
		ArtifactUUID: a.UUID,
		ContentHash:  testHash(content),
		ParentHash:   parentHash,
		ChangeOrigin: origin,
	})
	if err != nil {
		e.t.Fatalf("AppendVersion(%q) failed: %v", content, err)
	}
	return v
}

// CreateCollection creates a collection row.
func (e *testEnv) CreateCollection(id, name string) *types.Collection {
	e.t.Helper()
	c := &types.Collection{ID: id, Name: name}
	if err := e.Store.UpsertCollection(e.Ctx, c); err != nil {
		e.t.Fatalf("UpsertCollection(%q) failed: %v", id, err)
	}
	return c
}

// Join adds an artifact to a collection with the given manifest path.
func (e *testEnv) Join(c *types.Collection, a *types.Artifact, path string) {
	e.t.Helper()
	err := e.Store.UpsertCollectionArtifact(e.Ctx, &types.CollectionArtifact{
		CollectionID: c.ID,
		ArtifactUUID: a.UUID,
		Path:         path,
	})
	if err != nil {
		e.t.Fatalf("UpsertCollectionArtifact(%s, %s) failed: %v", c.ID, a.UUID, err)
	}
}

// CreateSet creates a deployment set with the given name.
func (e *testEnv) CreateSet(name string) *types.DeploymentSet {
	e.t.Helper()
	ds, err := e.Store.CreateSet(e.Ctx, &types.DeploymentSet{Name: name})
	if err != nil {
		e.t.Fatalf("CreateSet(%q) failed: %v", name, err)
	}
	return ds
}

// NestSet appends child as a nested-set member of parent.
func (e *testEnv) NestSet(parent, child *types.DeploymentSet) {
	e.t.Helper()
	err := e.Store.AddSetMember(e.Ctx, &types.DeploymentSetMember{
		SetID:      parent.ID,
		Position:   -1,
		Kind:       types.MemberSet,
		ChildSetID: child.ID,
	})
	if err != nil {
		e.t.Fatalf("AddSetMember(set %d -> set %d) failed: %v", parent.ID, child.ID, err)
	}
}

// testHash returns the hex sha256 of content, the same shape real content
// hashes have.
func testHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// newTestStore creates a SQLiteStorage backed by a temp file.
//
// Test Isolation Pattern:
// The standard ":memory:" creates a SHARED database across connections in
// the same pool, which can cause test interference and flaky behavior.
// File-based databases in t.TempDir() are more reliable for connection
// pool scenarios, and the directory is removed when the test completes.
//
// To override, pass a custom dbPath (e.g. ":memory:" for single-connection
// smoke tests).
func newTestStore(t *testing.T, dbPath string) *SQLiteStorage {
	t.Helper()

	if dbPath == "" {
		dbPath = t.TempDir() + "/test.db"
	}

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}
