package deploy

import (
	"testing"

	"github.com/skillmeat/skillmeat/internal/types"
)

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles("proj")
	if len(profiles) != len(types.KnownProfileRoots) {
		t.Fatalf("got %d profiles; want %d", len(profiles), len(types.KnownProfileRoots))
	}

	byID := make(map[string]*types.DeploymentProfile)
	for _, p := range profiles {
		byID[p.ProfileID] = p
	}
	claude, ok := byID["claude"]
	if !ok {
		t.Fatal("no claude profile")
	}
	if claude.RootDir != ".claude" || claude.Platform != types.PlatformClaudeCode {
		t.Errorf("claude profile = root %q platform %q", claude.RootDir, claude.Platform)
	}
	if claude.ProjectID != "proj" {
		t.Errorf("ProjectID = %q; want %q", claude.ProjectID, "proj")
	}
	if claude.ArtifactPathMap[string(types.TypeSkill)] != "skills" {
		t.Errorf("skill subdir = %q; want skills", claude.ArtifactPathMap[string(types.TypeSkill)])
	}
	if !claude.Supports(types.TypeMCP) {
		t.Error("empty SupportedTypes should accept every type")
	}
}

func TestDefaultProfileLookup(t *testing.T) {
	if p := DefaultProfile("proj", "cursor"); p == nil || p.RootDir != ".cursor" {
		t.Errorf("DefaultProfile(cursor) = %+v; want .cursor root", p)
	}
	if p := DefaultProfile("proj", "vim"); p != nil {
		t.Errorf("DefaultProfile(vim) = %+v; want nil", p)
	}
}

func TestDefaultProfilesAreIndependent(t *testing.T) {
	a := DefaultProfile("proj", "claude")
	a.ArtifactPathMap["skill"] = "mutated"
	b := DefaultProfile("proj", "claude")
	if b.ArtifactPathMap["skill"] != "skills" {
		t.Error("path map shared between DefaultProfile calls")
	}
}
