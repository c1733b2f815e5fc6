package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillmeat/skillmeat/internal/types"
)

func record(name, typ, path string) types.DeploymentRecord {
	return types.DeploymentRecord{
		ArtifactName:        name,
		ArtifactType:        typ,
		ArtifactPath:        path,
		DeployedAt:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ContentHash:         "deadbeef",
		DeploymentProfileID: "claude",
		Platform:            string(types.PlatformClaudeCode),
		ProfileRootDir:      ".claude",
	}
}

func TestTrackerAppendAndRead(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(t.TempDir(), ".claude")

	if err := tr.Append(ctx, record("my-skill", "skill", ".claude/skills/my-skill")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := tr.Append(ctx, record("deploy", "command", ".claude/commands/deploy.md")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Read returned %d records; want 2", len(records))
	}
	if records[0].ArtifactName != "my-skill" || records[1].ArtifactName != "deploy" {
		t.Errorf("records out of order: %q, %q", records[0].ArtifactName, records[1].ArtifactName)
	}
}

func TestTrackerAppendReplacesSameArtifact(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(t.TempDir(), ".claude")

	first := record("my-skill", "skill", ".claude/skills/my-skill")
	first.ContentHash = "aaaa"
	if err := tr.Append(ctx, first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second := record("my-skill", "skill", ".claude/skills/my-skill")
	second.ContentHash = "bbbb"
	if err := tr.Append(ctx, second); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Read returned %d records; want 1 after replace", len(records))
	}
	if records[0].ContentHash != "bbbb" {
		t.Errorf("ContentHash = %q; want the replacement", records[0].ContentHash)
	}
}

func TestTrackerReadMissingFile(t *testing.T) {
	tr := NewTracker(t.TempDir(), ".claude")
	records, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Read returned %d records; want none", len(records))
	}
}

func TestTrackerReadMalformedFile(t *testing.T) {
	project := t.TempDir()
	tr := NewTracker(project, ".claude")
	if err := os.MkdirAll(filepath.Join(project, ".claude"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tr.Path(), []byte("[[deployed\nnot toml"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Read returned %d records from malformed file; want none", len(records))
	}
}

func TestTrackerBackfillsLegacyRecords(t *testing.T) {
	project := t.TempDir()
	tr := NewTracker(project, ".claude")
	if err := os.MkdirAll(filepath.Join(project, ".claude"), 0755); err != nil {
		t.Fatal(err)
	}
	legacy := `[[deployed]]
artifact_name = "my-skill"
artifact_type = "skill"
artifact_path = ".claude/skills/my-skill"
deployed_at = 2025-06-01T00:00:00Z

[[deployed]]
artifact_name = "rooted-elsewhere"
artifact_type = "command"
artifact_path = "tools/run.md"
deployed_at = 2025-06-01T00:00:00Z
`
	if err := os.WriteFile(tr.Path(), []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Read returned %d records; want 2", len(records))
	}

	got := records[0]
	if got.ProfileRootDir != ".claude" {
		t.Errorf("ProfileRootDir = %q; want %q from the path prefix", got.ProfileRootDir, ".claude")
	}
	if got.Platform != string(types.PlatformClaudeCode) {
		t.Errorf("Platform = %q; want %q", got.Platform, types.PlatformClaudeCode)
	}
	if got.DeploymentProfileID != "claude" {
		t.Errorf("DeploymentProfileID = %q; want %q", got.DeploymentProfileID, "claude")
	}

	// No known root in the path, so the ledger's parent directory wins.
	if records[1].ProfileRootDir != ".claude" {
		t.Errorf("fallback ProfileRootDir = %q; want %q", records[1].ProfileRootDir, ".claude")
	}
}

func TestTrackerBackfillKeepsExistingFields(t *testing.T) {
	project := t.TempDir()
	tr := NewTracker(project, ".codex")
	if err := os.MkdirAll(filepath.Join(project, ".codex"), 0755); err != nil {
		t.Fatal(err)
	}
	data := `[[deployed]]
artifact_name = "my-skill"
artifact_type = "skill"
artifact_path = ".claude/skills/my-skill"
deployed_at = 2025-06-01T00:00:00Z
platform = "other"
`
	if err := os.WriteFile(tr.Path(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if records[0].Platform != string(types.PlatformOther) {
		t.Errorf("Platform = %q; backfill must not overwrite present fields", records[0].Platform)
	}
	if records[0].ProfileRootDir != ".claude" {
		t.Errorf("ProfileRootDir = %q; want %q", records[0].ProfileRootDir, ".claude")
	}
}

func TestTrackerRemove(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(t.TempDir(), ".claude")
	if err := tr.Append(ctx, record("my-skill", "skill", ".claude/skills/my-skill")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := tr.Append(ctx, record("deploy", "command", ".claude/commands/deploy.md")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := tr.Remove(ctx, "skill", "my-skill"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	records, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 || records[0].ArtifactName != "deploy" {
		t.Fatalf("Read after Remove = %+v; want only the command", records)
	}

	// Removing an absent record is a no-op.
	if err := tr.Remove(ctx, "skill", "ghost"); err != nil {
		t.Fatalf("Remove of absent record failed: %v", err)
	}
}

func TestTrackerAppendStampsDeployedAt(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(t.TempDir(), ".claude")
	rec := record("my-skill", "skill", ".claude/skills/my-skill")
	rec.DeployedAt = time.Time{}
	if err := tr.Append(ctx, rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	records, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if records[0].DeployedAt.IsZero() {
		t.Error("DeployedAt is zero; want it stamped on append")
	}
}
