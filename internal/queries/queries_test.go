package queries

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
)

type queryEnv struct {
	ctx   context.Context
	store *sqlite.SQLiteStorage
}

func newQueryEnv(t *testing.T) *queryEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.UpsertCollection(ctx, &types.Collection{ID: "main", Name: "Main"}); err != nil {
		t.Fatalf("UpsertCollection failed: %v", err)
	}
	return &queryEnv{ctx: ctx, store: store}
}

func (e *queryEnv) seed(t *testing.T, a *types.Artifact) *types.Artifact {
	t.Helper()
	if err := e.store.UpsertArtifact(e.ctx, a); err != nil {
		t.Fatalf("UpsertArtifact(%s) failed: %v", a.Name, err)
	}
	if err := e.store.UpsertCollectionArtifact(e.ctx, &types.CollectionArtifact{
		CollectionID: "main",
		ArtifactUUID: a.UUID,
		Path:         "artifacts/" + a.Name,
	}); err != nil {
		t.Fatalf("UpsertCollectionArtifact(%s) failed: %v", a.Name, err)
	}
	return a
}

func TestOutdated(t *testing.T) {
	tests := []struct {
		name     string
		deployed string
		upstream string
		want     bool
	}{
		{"upstream ahead", "1.2.0", "1.3.0", true},
		{"same version", "1.2.0", "1.2.0", false},
		{"deployed ahead", "2.0.0", "1.9.9", false},
		{"v prefix mixed", "v1.0.0", "1.0.1", true},
		{"patch bump", "0.1.0", "0.1.1", true},
		{"non-semver differs", "build-47", "build-48", true},
		{"non-semver equal", "build-47", "build-47", false},
		{"no upstream", "1.0.0", "", false},
		{"never deployed", "", "2.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outdated(tt.deployed, tt.upstream); got != tt.want {
				t.Errorf("Outdated(%q, %q) = %v; want %v", tt.deployed, tt.upstream, got, tt.want)
			}
		})
	}
}

func TestMarkOutdated(t *testing.T) {
	a := &types.Artifact{DeployedVersion: "1.0.0", UpstreamVersion: "1.1.0"}
	MarkOutdated(a)
	if !a.Outdated {
		t.Error("artifact behind upstream not marked outdated")
	}

	a.DeployedVersion = "1.1.0"
	MarkOutdated(a)
	if a.Outdated {
		t.Error("stale outdated flag not cleared after catching up")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	t.Run("absolute date", func(t *testing.T) {
		got, err := ParseSince("2026-01-15", now)
		if err != nil {
			t.Fatalf("ParseSince failed: %v", err)
		}
		want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("ParseSince(2026-01-15) = %v; want %v", got, want)
		}
	})

	t.Run("natural language", func(t *testing.T) {
		got, err := ParseSince("yesterday", now)
		if err != nil {
			t.Fatalf("ParseSince failed: %v", err)
		}
		if !got.Before(now) || got.Before(now.Add(-48*time.Hour)) {
			t.Errorf("ParseSince(yesterday) = %v; want within the last two days of %v", got, now)
		}
	})

	t.Run("gibberish", func(t *testing.T) {
		_, err := ParseSince("definitely not a point in time", now)
		if !types.IsKind(err, types.KindValidation) {
			t.Errorf("ParseSince(gibberish) error = %v; want validation", err)
		}
		if types.DetailOf(err) != "bad_since" {
			t.Errorf("detail = %q; want %q", types.DetailOf(err), "bad_since")
		}
	})
}

func TestSuggest(t *testing.T) {
	candidates := []string{"code-review", "commit-helper", "deploy-check", "release-notes"}

	t.Run("near miss", func(t *testing.T) {
		got := Suggest("code-reviev", candidates, 3)
		if len(got) == 0 || got[0] != "code-review" {
			t.Errorf("Suggest(code-reviev) = %v; want code-review first", got)
		}
	})

	t.Run("substring", func(t *testing.T) {
		got := Suggest("review", candidates, 3)
		if len(got) == 0 || got[0] != "code-review" {
			t.Errorf("Suggest(review) = %v; want code-review first", got)
		}
	})

	t.Run("nothing close", func(t *testing.T) {
		if got := Suggest("zzzzzzzzzz", candidates, 3); len(got) != 0 {
			t.Errorf("Suggest(zzzzzzzzzz) = %v; want none", got)
		}
	})

	t.Run("respects max", func(t *testing.T) {
		if got := Suggest("e", candidates, 2); len(got) > 2 {
			t.Errorf("Suggest returned %d names; want at most 2", len(got))
		}
	})
}

func TestListFiltersAndJoins(t *testing.T) {
	env := newQueryEnv(t)
	skill := env.seed(t, &types.Artifact{Type: types.TypeSkill, Name: "reviewer", Description: "reviews code"})
	env.seed(t, &types.Artifact{Type: types.TypeCommand, Name: "deploy", Description: "ships it"})

	tag, err := env.store.CreateTag(env.ctx, &types.Tag{Name: "Quality"})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if err := env.store.TagArtifact(env.ctx, skill.UUID, tag.ID); err != nil {
		t.Fatalf("TagArtifact failed: %v", err)
	}

	t.Run("by type", func(t *testing.T) {
		entries, err := List(env.ctx, env.store, ListOptions{CollectionID: "main", Type: types.TypeSkill})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Key() != "skill:reviewer" {
			t.Fatalf("List by type = %d entries; want just skill:reviewer", len(entries))
		}
		if len(entries[0].Tags) != 1 || entries[0].Tags[0] != "Quality" {
			t.Errorf("tags = %v; want [Quality]", entries[0].Tags)
		}
		if entries[0].Pin == nil || entries[0].Pin.Path != "artifacts/reviewer" {
			t.Errorf("pin not joined: %+v", entries[0].Pin)
		}
	})

	t.Run("by search", func(t *testing.T) {
		entries, err := List(env.ctx, env.store, ListOptions{CollectionID: "main", Search: "ships"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Key() != "command:deploy" {
			t.Errorf("List by search = %v entries; want just command:deploy", len(entries))
		}
	})
}

func TestListDeployedSince(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, &types.Artifact{Type: types.TypeCommand, Name: "fresh", DeployedVersion: "1.0.0"})
	env.seed(t, &types.Artifact{Type: types.TypeCommand, Name: "never-deployed"})

	cutoff := time.Now().Add(-time.Hour)
	entries, err := List(env.ctx, env.store, ListOptions{CollectionID: "main", DeployedSince: cutoff})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Artifact.Name != "fresh" {
		t.Fatalf("List since %v = %d entries; want just fresh", cutoff, len(entries))
	}

	future := time.Now().Add(time.Hour)
	entries, err = List(env.ctx, env.store, ListOptions{CollectionID: "main", DeployedSince: future})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List with future cutoff = %d entries; want none", len(entries))
	}
}

func TestStatus(t *testing.T) {
	env := newQueryEnv(t)
	env.seed(t, &types.Artifact{Type: types.TypeSkill, Name: "reviewer", DeployedVersion: "1.0.0", UpstreamVersion: "1.1.0"})
	env.seed(t, &types.Artifact{Type: types.TypeSkill, Name: "writer"})
	env.seed(t, &types.Artifact{Type: types.TypeCommand, Name: "deploy", LocalModified: true})

	if _, err := env.store.CreateTag(env.ctx, &types.Tag{Name: "Quality"}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if _, err := env.store.CreateSet(env.ctx, &types.DeploymentSet{Name: "starter"}); err != nil {
		t.Fatalf("CreateSet failed: %v", err)
	}

	s, err := Status(env.ctx, env.store, "main")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if s.Artifacts != 3 {
		t.Errorf("Artifacts = %d; want 3", s.Artifacts)
	}
	if s.ByType[types.TypeSkill] != 2 || s.ByType[types.TypeCommand] != 1 {
		t.Errorf("ByType = %v; want 2 skills, 1 command", s.ByType)
	}
	if s.Deployed != 1 {
		t.Errorf("Deployed = %d; want 1", s.Deployed)
	}
	if s.Outdated != 1 {
		t.Errorf("Outdated = %d; want 1", s.Outdated)
	}
	if s.LocalModified != 1 {
		t.Errorf("LocalModified = %d; want 1", s.LocalModified)
	}
	if s.Tags != 1 || s.Sets != 1 {
		t.Errorf("Tags = %d, Sets = %d; want 1 and 1", s.Tags, s.Sets)
	}
}
