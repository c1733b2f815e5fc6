package deploy

import "github.com/skillmeat/skillmeat/internal/types"

// defaultPathMap is the conventional type-to-subdirectory layout shared
// by every known platform root.
var defaultPathMap = map[string]string{
	string(types.TypeSkill):   "skills",
	string(types.TypeCommand): "commands",
	string(types.TypeAgent):   "agents",
	string(types.TypeHook):    "hooks",
}

// DefaultProfiles returns one builtin profile per known platform root,
// scoped to the given project. sm init seeds these into the cache; deploy
// falls back to them when a profile id is recognized but absent from the
// database.
func DefaultProfiles(projectID string) []*types.DeploymentProfile {
	var profiles []*types.DeploymentProfile
	for _, root := range types.KnownProfileRoots {
		profiles = append(profiles, defaultProfileForRoot(projectID, root))
	}
	return profiles
}

// DefaultProfile resolves a builtin profile by id ("claude", "codex",
// "gemini", "cursor"), or nil when the id names no known root.
func DefaultProfile(projectID, profileID string) *types.DeploymentProfile {
	for _, root := range types.KnownProfileRoots {
		if profileID == profileIDForRoot(root) {
			return defaultProfileForRoot(projectID, root)
		}
	}
	return nil
}

func defaultProfileForRoot(projectID, root string) *types.DeploymentProfile {
	pathMap := make(map[string]string, len(defaultPathMap))
	for k, v := range defaultPathMap {
		pathMap[k] = v
	}
	return &types.DeploymentProfile{
		ProfileID:       profileIDForRoot(root),
		ProjectID:       projectID,
		Platform:        types.PlatformForRootDir(root),
		RootDir:         root,
		ArtifactPathMap: pathMap,
	}
}

func profileIDForRoot(root string) string {
	return root[1:] // ".claude" -> "claude"
}
