package deploy

import (
	"path/filepath"
	"testing"

	"github.com/skillmeat/skillmeat/internal/types"
)

func claudeProfile() *types.DeploymentProfile {
	return &types.DeploymentProfile{
		ProfileID: "claude",
		Platform:  types.PlatformClaudeCode,
		RootDir:   ".claude",
		ArtifactPathMap: map[string]string{
			"skill":   "skills",
			"command": "commands",
			"agent":   "agents",
		},
	}
}

func TestTargetRelPath(t *testing.T) {
	profile := claudeProfile()
	tests := []struct {
		name   string
		t      types.ArtifactType
		source string
		want   string
	}{
		{"collection skill dir", types.TypeSkill, "artifacts/skills/my-skill", ".claude/skills/my-skill"},
		{"collection command file", types.TypeCommand, "artifacts/commands/deploy.md", ".claude/commands/deploy.md"},
		{"already under platform root", types.TypeSkill, ".claude/skills/my-skill", ".claude/skills/my-skill"},
		{"foreign platform root stripped", types.TypeSkill, ".cursor/skills/my-skill", ".claude/skills/my-skill"},
		{"nested layout kept under subdir", types.TypeCommand, ".claude/commands/git/commit.md", ".claude/commands/git/commit.md"},
		{"absolute-looking path", types.TypeSkill, "/artifacts/skills/my-skill", ".claude/skills/my-skill"},
		{"redundant segments", types.TypeSkill, "artifacts//skills/./my-skill", ".claude/skills/my-skill"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TargetRelPath(profile, tt.t, tt.source)
			if err != nil {
				t.Fatalf("TargetRelPath(%q) failed: %v", tt.source, err)
			}
			if got != tt.want {
				t.Errorf("TargetRelPath(%q) = %q; want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestTargetRelPathUnmappedType(t *testing.T) {
	profile := claudeProfile()
	got, err := TargetRelPath(profile, types.TypeMCP, "artifacts/mcps/server/mcp.json")
	if err != nil {
		t.Fatalf("TargetRelPath failed: %v", err)
	}
	// Without a subdir mapping the artifact lands at the root by basename.
	if want := ".claude/mcp.json"; got != want {
		t.Errorf("TargetRelPath = %q; want %q", got, want)
	}
}

func TestTargetRelPathRejectsTraversal(t *testing.T) {
	profile := claudeProfile()
	tests := []struct {
		name   string
		source string
	}{
		{"leading dotdot", "../outside/SKILL.md"},
		{"escaping dotdot", "artifacts/../../outside"},
		{"bare dotdot", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TargetRelPath(profile, types.TypeSkill, tt.source)
			if !types.IsKind(err, types.KindPathTraversal) {
				t.Fatalf("TargetRelPath(%q) error = %v; want path traversal", tt.source, err)
			}
		})
	}
}

func TestTargetRelPathRejectsTraversalInRootDir(t *testing.T) {
	profile := claudeProfile()
	profile.RootDir = "../elsewhere"
	_, err := TargetRelPath(profile, types.TypeSkill, "artifacts/skills/my-skill")
	if !types.IsKind(err, types.KindPathTraversal) {
		t.Fatalf("TargetRelPath error = %v; want path traversal", err)
	}
}

func TestTargetRelPathValidation(t *testing.T) {
	profile := claudeProfile()
	tests := []struct {
		name   string
		source string
		detail string
	}{
		{"empty source", "", "empty_path"},
		{"bare platform root", ".claude", "empty_path"},
		{"dot", ".", "empty_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TargetRelPath(profile, types.TypeSkill, tt.source)
			if !types.IsKind(err, types.KindValidation) {
				t.Fatalf("TargetRelPath(%q) error = %v; want validation error", tt.source, err)
			}
			if got := types.DetailOf(err); got != tt.detail {
				t.Errorf("detail = %q; want %q", got, tt.detail)
			}
		})
	}

	if _, err := TargetRelPath(nil, types.TypeSkill, "artifacts/skills/x"); !types.IsKind(err, types.KindValidation) {
		t.Fatalf("TargetRelPath(nil profile) error = %v; want validation error", err)
	}
}

func TestTargetPathJoinsProject(t *testing.T) {
	profile := claudeProfile()
	got, err := TargetPath("/tmp/project", profile, types.TypeSkill, "artifacts/skills/my-skill")
	if err != nil {
		t.Fatalf("TargetPath failed: %v", err)
	}
	want := filepath.Join("/tmp/project", ".claude", "skills", "my-skill")
	if got != want {
		t.Errorf("TargetPath = %q; want %q", got, want)
	}
}
