// Package git fetches remote artifact sources for import.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// FetchSource shallow-clones repoURL at ref and returns the absolute
// path of subPath inside the clone, plus a cleanup func that removes the
// whole clone. The clone lands in a dot-prefixed temp directory under
// stagingRoot so callers can rename content out of it without crossing
// filesystems; empty stagingRoot falls back to the OS temp dir. ref may
// be a branch or a tag; empty means the remote's default branch.
func FetchSource(ctx context.Context, repoURL, ref, subPath, stagingRoot string) (string, func(), error) {
	const op = "git.FetchSource"

	if stagingRoot != "" {
		if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
			return "", nil, types.WrapError(types.KindTransientIO, op, err)
		}
	}
	tmp, err := os.MkdirTemp(stagingRoot, ".sm-fetch-")
	if err != nil {
		return "", nil, types.WrapError(types.KindTransientIO, op, err)
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	if err := cloneShallow(ctx, repoURL, ref, tmp); err != nil {
		cleanup()
		return "", nil, err
	}

	dir, err := subDir(tmp, subPath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	debug.Logf("fetched %s@%s -> %s", repoURL, ref, dir)
	return dir, cleanup, nil
}

// cloneShallow clones depth-1. A named ref is tried as a branch first
// and as a tag second, since URL specs do not say which one they carry.
func cloneShallow(ctx context.Context, repoURL, ref, dest string) error {
	const op = "git.cloneShallow"

	opts := &gogit.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         gogit.NoTags,
	}
	if ref == "" {
		if _, err := gogit.PlainCloneContext(ctx, dest, false, opts); err != nil {
			return types.WrapError(types.KindTransientIO, op, err)
		}
		return nil
	}

	opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	_, err := gogit.PlainCloneContext(ctx, dest, false, opts)
	if err == nil {
		return nil
	}

	_ = os.RemoveAll(dest)
	if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
		return types.WrapError(types.KindTransientIO, op, mkErr)
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(ref)
	if _, tagErr := gogit.PlainCloneContext(ctx, dest, false, opts); tagErr != nil {
		return types.WrapError(types.KindTransientIO, op,
			fmt.Errorf("ref %q is neither a branch (%v) nor a tag: %w", ref, err, tagErr))
	}
	return nil
}

// subDir resolves a repo-relative path inside the clone, rejecting
// anything that escapes it.
func subDir(root, subPath string) (string, error) {
	const op = "git.subDir"

	if subPath == "" {
		return root, nil
	}
	clean := filepath.Clean(filepath.FromSlash(subPath))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", types.NewDetailError(types.KindPathTraversal, op,
			"path_escapes_repo", "source path %q escapes the repository", subPath)
	}
	full := filepath.Join(root, clean)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", types.NewDetailError(types.KindNotFound, op,
				"missing_source_path", "repository has no %s", subPath)
		}
		return "", types.WrapError(types.KindTransientIO, op, err)
	}
	return full, nil
}
