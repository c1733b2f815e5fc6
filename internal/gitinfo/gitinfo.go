// Package gitinfo reads local git state for provenance stamps.
package gitinfo

import (
	git "github.com/go-git/go-git/v5"

	"github.com/skillmeat/skillmeat/internal/debug"
)

// HeadSHA returns the HEAD commit hash of the work tree containing
// path, or "" when path is not inside a git repository or the repo has
// no commits yet. Purely local; nothing is fetched.
func HeadSHA(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		debug.Logf("no HEAD for %s: %v", path, err)
		return ""
	}
	return head.Hash().String()
}
