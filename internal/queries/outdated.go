package queries

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/skillmeat/skillmeat/internal/types"
)

// Outdated reports whether upstream has moved past the deployed version.
// Both versions are normalized to the v-prefixed form; when both parse as
// semver the comparison is ordered, otherwise any difference counts.
// Missing upstream information never flags an artifact.
func Outdated(deployed, upstream string) bool {
	if upstream == "" || deployed == "" {
		return false
	}

	dv := normalizeVersion(deployed)
	uv := normalizeVersion(upstream)
	if semver.IsValid(dv) && semver.IsValid(uv) {
		return semver.Compare(dv, uv) < 0
	}
	return deployed != upstream
}

// MarkOutdated recomputes a.Outdated from the version pair in place.
func MarkOutdated(a *types.Artifact) {
	a.Outdated = Outdated(a.DeployedVersion, a.UpstreamVersion)
}

func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
