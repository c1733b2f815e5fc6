// Package deploy materializes resolved artifacts into project
// directories: path resolution onto platform roots, staged atomic
// deployment with variable rendering, and the per-root tracker ledger.
package deploy

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/skillmeat/skillmeat/internal/types"
)

// TargetRelPath rewrites an artifact's collection-relative source path
// into a path relative to the project directory. A leading known
// platform root (.claude, .codex, .gemini, .cursor) is stripped, the
// profile's own root is prepended, and the type subdirectory from the
// profile's path map is honored: a source that already lives under that
// subdirectory keeps its inner layout (nested command directories
// survive replatforming), anything else lands as <subdir>/<basename>.
func TargetRelPath(profile *types.DeploymentProfile, t types.ArtifactType, sourcePath string) (string, error) {
	const op = "deploy.TargetRelPath"
	if profile == nil {
		return "", types.NewDetailError(types.KindValidation, op,
			"missing_profile", "deployment profile is required")
	}
	if sourcePath == "" {
		return "", types.NewDetailError(types.KindValidation, op,
			"empty_path", "artifact source path is required")
	}

	// Clean folds any interior ".." segments, so traversal can only
	// survive as a leading one.
	rel := path.Clean(filepath.ToSlash(sourcePath))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", types.NewDetailError(types.KindPathTraversal, op,
			"path_traversal", "source path %q escapes the collection", sourcePath)
	}
	rel = strings.TrimPrefix(rel, "/")

	for _, root := range types.KnownProfileRoots {
		if rel == root {
			rel = ""
			break
		}
		if strings.HasPrefix(rel, root+"/") {
			rel = rel[len(root)+1:]
			break
		}
	}
	if rel == "" || rel == "." {
		return "", types.NewDetailError(types.KindValidation, op,
			"empty_path", "source path %q names a platform root, not an artifact", sourcePath)
	}

	subdir := ""
	if profile.ArtifactPathMap != nil {
		subdir = profile.ArtifactPathMap[string(t)]
	}
	switch {
	case subdir == "":
		rel = path.Base(rel)
	case rel == subdir || strings.HasPrefix(rel, subdir+"/"):
		// Already laid out for the platform; keep inner nesting.
	default:
		rel = subdir + "/" + path.Base(rel)
	}

	if strings.Contains(profile.RootDir, "..") {
		return "", types.NewDetailError(types.KindPathTraversal, op,
			"path_traversal", "profile root %q escapes the project", profile.RootDir)
	}
	return path.Join(profile.RootDir, rel), nil
}

// TargetPath resolves the absolute target for an artifact inside a
// project.
func TargetPath(projectPath string, profile *types.DeploymentProfile, t types.ArtifactType, sourcePath string) (string, error) {
	rel, err := TargetRelPath(profile, t, sourcePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(projectPath, filepath.FromSlash(rel)), nil
}
