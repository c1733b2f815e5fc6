package sqlite

import (
	"errors"
	"testing"

	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// importComposite mirrors the orchestrator's write pattern: parent,
// children, versions, and pins land in one transaction.
func importComposite(env *testEnv, id, name string, children []string) error {
	return env.Store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertComposite(env.Ctx, &types.CompositeArtifact{
			ID:            id,
			Name:          name,
			CompositeType: types.CompositePlugin,
			CollectionID:  "main",
		}); err != nil {
			return err
		}
		if err := tx.DeleteCompositeMemberships(env.Ctx, id); err != nil {
			return err
		}
		for i, child := range children {
			a := &types.Artifact{Type: types.TypeCommand, Name: child}
			if existing, err := tx.FindArtifactByName(env.Ctx, child, types.TypeCommand); err != nil {
				return err
			} else if existing != nil {
				a = existing
			} else if err := tx.UpsertArtifact(env.Ctx, a); err != nil {
				return err
			}
			v, err := tx.AppendVersion(env.Ctx, &types.ArtifactVersion{
				ArtifactUUID: a.UUID,
				ContentHash:  testHash(id + "/" + child),
				ChangeOrigin: types.OriginSync,
			})
			if err != nil {
				return err
			}
			if err := tx.AddCompositeMembership(env.Ctx, &types.CompositeMembership{
				CompositeID:       id,
				ChildUUID:         a.UUID,
				Position:          i,
				PinnedVersionHash: v.ContentHash,
				CollectionID:      "main",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestCompositeImportAtomic(t *testing.T) {
	env := newTestEnv(t)
	env.CreateCollection("main", "Main")

	if err := importComposite(env, "composite:dev-toolkit", "dev-toolkit",
		[]string{"lint", "format", "release"}); err != nil {
		t.Fatalf("composite import failed: %v", err)
	}

	got, err := env.Store.GetComposite(env.Ctx, "composite:dev-toolkit")
	if err != nil {
		t.Fatalf("GetComposite failed: %v", err)
	}
	if got.CompositeType != types.CompositePlugin {
		t.Errorf("CompositeType = %q; want plugin", got.CompositeType)
	}

	members, err := env.Store.GetCompositeMemberships(env.Ctx, "composite:dev-toolkit")
	if err != nil {
		t.Fatalf("GetCompositeMemberships failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d memberships; want 3", len(members))
	}
	for i, m := range members {
		if m.Position != i {
			t.Errorf("member %d has position %d", i, m.Position)
		}
		if m.PinnedVersionHash == "" {
			t.Errorf("member %d has no pinned version", i)
		}
	}
}

func TestCompositeImportRollsBackOnError(t *testing.T) {
	env := newTestEnv(t)
	env.CreateCollection("main", "Main")

	boom := errors.New("simulated child failure")
	err := env.Store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertComposite(env.Ctx, &types.CompositeArtifact{
			ID:            "composite:doomed",
			Name:          "doomed",
			CompositeType: types.CompositeSkill,
		}); err != nil {
			return err
		}
		a := &types.Artifact{Type: types.TypeSkill, Name: "half-imported"}
		if err := tx.UpsertArtifact(env.Ctx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction error = %v; want the callback's error", err)
	}

	if _, err := env.Store.GetComposite(env.Ctx, "composite:doomed"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("parent survived rollback: kind = %q", types.KindOf(err))
	}
	orphan, err := env.Store.FindArtifactByName(env.Ctx, "half-imported", types.TypeSkill)
	if err != nil {
		t.Fatalf("FindArtifactByName failed: %v", err)
	}
	if orphan != nil {
		t.Error("child survived rollback")
	}
}

func TestRunInTransactionPanicRollsBack(t *testing.T) {
	env := newTestEnv(t)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("panic should propagate out of RunInTransaction")
			}
		}()
		_ = env.Store.RunInTransaction(env.Ctx, func(tx storage.Transaction) error {
			a := &types.Artifact{Type: types.TypeSkill, Name: "panicked"}
			if err := tx.UpsertArtifact(env.Ctx, a); err != nil {
				return err
			}
			panic("mid-import crash")
		})
	}()

	leftover, err := env.Store.FindArtifactByName(env.Ctx, "panicked", types.TypeSkill)
	if err != nil {
		t.Fatalf("FindArtifactByName failed: %v", err)
	}
	if leftover != nil {
		t.Error("artifact written before panic survived rollback")
	}
}

func TestCompositeReimportReplacesMemberships(t *testing.T) {
	env := newTestEnv(t)
	env.CreateCollection("main", "Main")

	if err := importComposite(env, "composite:toolkit", "toolkit",
		[]string{"alpha", "beta"}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if err := importComposite(env, "composite:toolkit", "toolkit",
		[]string{"gamma"}); err != nil {
		t.Fatalf("reimport failed: %v", err)
	}

	members, err := env.Store.GetCompositeMemberships(env.Ctx, "composite:toolkit")
	if err != nil {
		t.Fatalf("GetCompositeMemberships failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("got %d memberships after reimport; want 1", len(members))
	}

	// The dropped children keep their registry rows: membership is a pin,
	// not ownership.
	alpha, err := env.Store.FindArtifactByName(env.Ctx, "alpha", types.TypeCommand)
	if err != nil {
		t.Fatalf("FindArtifactByName failed: %v", err)
	}
	if alpha == nil {
		t.Error("reimport should not delete previously imported children")
	}
}

func TestCompositeValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		composite  *types.CompositeArtifact
		wantDetail string
	}{
		{
			name: "missing prefix",
			composite: &types.CompositeArtifact{
				ID: "dev-toolkit", Name: "dev-toolkit", CompositeType: types.CompositePlugin,
			},
			wantDetail: "invalid_composite_id",
		},
		{
			name: "unknown type",
			composite: &types.CompositeArtifact{
				ID: "composite:odd", Name: "odd", CompositeType: "bundle",
			},
			wantDetail: "invalid_composite_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Store.UpsertComposite(env.Ctx, tt.composite)
			if !types.IsKind(err, types.KindValidation) {
				t.Errorf("UpsertComposite() kind = %q, want validation", types.KindOf(err))
			}
			if types.DetailOf(err) != tt.wantDetail {
				t.Errorf("UpsertComposite() detail = %q, want %q", types.DetailOf(err), tt.wantDetail)
			}
		})
	}
}

func TestMembershipPinRequiresLiveVersion(t *testing.T) {
	env := newTestEnv(t)
	a := env.CreateArtifact("member")

	if err := env.Store.UpsertComposite(env.Ctx, &types.CompositeArtifact{
		ID: "composite:pinned", Name: "pinned", CompositeType: types.CompositePlugin,
	}); err != nil {
		t.Fatalf("UpsertComposite failed: %v", err)
	}

	err := env.Store.AddCompositeMembership(env.Ctx, &types.CompositeMembership{
		CompositeID:       "composite:pinned",
		ChildUUID:         a.UUID,
		PinnedVersionHash: testHash("no such version"),
	})
	if err == nil {
		t.Fatal("pin to a nonexistent version should fail the foreign key")
	}
}

func TestListCompositesByCollection(t *testing.T) {
	env := newTestEnv(t)
	env.CreateCollection("main", "Main")

	if err := importComposite(env, "composite:one", "one", []string{"a"}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if err := env.Store.UpsertComposite(env.Ctx, &types.CompositeArtifact{
		ID: "composite:stray", Name: "stray", CompositeType: types.CompositeSkill,
		CollectionID: "elsewhere",
	}); err != nil {
		t.Fatalf("UpsertComposite failed: %v", err)
	}

	got, err := env.Store.ListComposites(env.Ctx, "main")
	if err != nil {
		t.Fatalf("ListComposites failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "composite:one" {
		t.Errorf("ListComposites(main) = %d rows; want just composite:one", len(got))
	}

	all, err := env.Store.ListComposites(env.Ctx, "")
	if err != nil {
		t.Fatalf("ListComposites failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListComposites(all) = %d rows; want 2", len(all))
	}
}
