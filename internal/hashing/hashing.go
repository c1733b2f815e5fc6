// Package hashing computes deterministic content hashes for artifacts.
//
// A regular file hashes to the SHA-256 of its byte stream. A directory
// hashes to a Merkle root over its included files: each file contributes
// the line "<relative_posix_path>\x00<sha256hex>\n", lines sorted by path.
// The same logical content always produces the same hash regardless of
// traversal order or filesystem semantics.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// Exclusion rules are fixed: adding any matching file to a tree never
// changes its hash.
var (
	excludedDirs = map[string]bool{
		".git":          true,
		"node_modules":  true,
		"__pycache__":   true,
		".mypy_cache":   true,
		".pytest_cache": true,
		".ruff_cache":   true,
		".tox":          true,
		"venv":          true,
		".venv":         true,
		"dist":          true,
		"build":         true,
	}
	excludedFiles = map[string]bool{
		".DS_Store": true,
		"Thumbs.db": true,
		".gitkeep":  true,
	}
	excludedPrefixes = []string{"~$", ".#"}
	excludedSuffixes = []string{".tmp", ".swp", ".swo", "~"}
)

// Excluded reports whether a file name is ignored by tree hashing.
// Directory exclusion is checked separately via excludedDirs.
func Excluded(name string) bool {
	if excludedFiles[name] {
		return true
	}
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, s := range excludedSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether a directory name is pruned from tree hashing.
func ExcludedDir(name string) bool {
	return excludedDirs[name]
}

// HashPath hashes the file or directory at path and returns the 64-hex
// SHA-256. A missing path is a not_found error; anything that is neither
// a regular file nor a directory is a validation error.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewDetailError(types.KindNotFound, "hashing.HashPath",
				"missing_path", "%s does not exist", path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	switch {
	case info.Mode().IsRegular():
		return HashFile(path)
	case info.IsDir():
		return HashTree(path)
	default:
		return "", types.NewDetailError(types.KindValidation, "hashing.HashPath",
			"invalid_target", "%s is neither a regular file nor a directory", path)
	}
}

// HashFile hashes a single regular file's byte stream.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes hashes an in-memory byte slice. Deploy verification uses this
// to compare materialized content against tracker records.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashTree computes the Merkle root of a directory. Unreadable files
// inside the tree are skipped with a debug log; an empty tree still
// produces a stable hash.
func HashTree(root string) (string, error) {
	type record struct {
		relPath string
		hash    string
	}
	var records []record

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			debug.Logf("hashing: skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && ExcludedDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || Excluded(name) {
			return nil
		}

		fileHash, herr := HashFile(path)
		if herr != nil {
			debug.Logf("hashing: skipping unreadable file %s: %v", path, herr)
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return fmt.Errorf("rel %s: %w", path, rerr)
		}
		records = append(records, record{relPath: filepath.ToSlash(rel), hash: fileHash})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].relPath < records[j].relPath })

	h := sha256.New()
	for _, r := range records {
		fmt.Fprintf(h, "%s\x00%s\n", r.relPath, r.hash)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
