package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// ScanMode selects which conventional subtree holds the type containers.
type ScanMode string

const (
	// ModeProject scans .claude/ under the root.
	ModeProject ScanMode = "project"
	// ModeCollection scans artifacts/ under the root.
	ModeCollection ScanMode = "collection"
	// ModeAuto picks project when .claude/ exists, collection when only
	// artifacts/ exists, and the root itself otherwise.
	ModeAuto ScanMode = "auto"
)

const (
	projectSubdir    = ".claude"
	collectionSubdir = "artifacts"

	// maxNestingDepth bounds recursion below a container for types that
	// permit nesting.
	maxNestingDepth = 3
)

// Confidence scoring: each satisfied signal is worth 25 points, capped at
// 100. Container and entry-kind matches are prerequisites, so heuristic
// hits start at 50.
const signalWeight = 25

// fileSkipList holds names never treated as artifacts inside a container.
var fileSkipList = map[string]bool{
	"README.md":    true,
	"LICENSE":      true,
	"LICENSE.md":   true,
	"CHANGELOG.md": true,
}

// Scan walks the type containers under root and returns every candidate
// found, scored heuristically. Unknown containers are skipped with a
// debug log.
func Scan(root string, mode ScanMode) ([]types.DiscoveredArtifact, error) {
	const op = "discovery.Scan"
	base, err := resolveBase(root, mode)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewDetailError(types.KindNotFound, op, "missing_path",
				"scan root %s does not exist", base)
		}
		return nil, fmt.Errorf("reading scan root: %w", err)
	}

	var found []types.DiscoveredArtifact
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sig, ok := NormalizeContainer(e.Name())
		if !ok {
			debug.Logf("discovery: skipping unknown container %s", e.Name())
			continue
		}
		hits, err := scanContainer(filepath.Join(base, e.Name()), sig, false)
		if err != nil {
			return nil, err
		}
		found = append(found, hits...)
	}
	return found, nil
}

// Detect classifies a single path as the given type using strict rules:
// the entry kind must match the signature and, for directory types, a
// required manifest must be present. A nil result means the path does
// not satisfy the signature.
func Detect(path string, t types.ArtifactType) (*types.DiscoveredArtifact, error) {
	const op = "discovery.Detect"
	sig, ok := SignatureFor(t)
	if !ok {
		return nil, types.NewDetailError(types.KindValidation, op, "invalid_type",
			"unknown artifact type %q", t)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewDetailError(types.KindNotFound, op, "missing_path",
				"%s does not exist", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	parent := filepath.Dir(path)
	if info.IsDir() {
		if !sig.DirBased {
			return nil, nil
		}
		d, ok := detectDir(parent, path, sig, true)
		if !ok {
			return nil, nil
		}
		return &d, nil
	}
	if sig.DirBased {
		return nil, nil
	}
	d, ok := detectFile(parent, path, sig, true)
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// resolveBase picks the directory whose children are the type containers.
func resolveBase(root string, mode ScanMode) (string, error) {
	switch mode {
	case ModeProject:
		return filepath.Join(root, projectSubdir), nil
	case ModeCollection:
		return filepath.Join(root, collectionSubdir), nil
	case ModeAuto:
		// Project wins when both subtrees exist.
		if isDir(filepath.Join(root, projectSubdir)) {
			return filepath.Join(root, projectSubdir), nil
		}
		if isDir(filepath.Join(root, collectionSubdir)) {
			return filepath.Join(root, collectionSubdir), nil
		}
		return root, nil
	}
	return "", types.NewDetailError(types.KindValidation, "discovery.Scan", "invalid_mode",
		"unknown scan mode %q", mode)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func scanContainer(dir string, sig Signature, strict bool) ([]types.DiscoveredArtifact, error) {
	return scanLevel(dir, dir, sig, strict, 1)
}

// scanLevel visits one directory level under a container. depth counts
// from the container root; nesting types descend to maxNestingDepth.
func scanLevel(containerRoot, dir string, sig Signature, strict bool, depth int) ([]types.DiscoveredArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading container %s: %w", dir, err)
	}

	var found []types.DiscoveredArtifact
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		if e.IsDir() {
			if sig.DirBased {
				if d, ok := detectDir(containerRoot, full, sig, strict); ok {
					// A manifest directory is one artifact; its own
					// subtree belongs to its content hash.
					found = append(found, d)
					continue
				}
			}
			if sig.AllowNesting && depth < maxNestingDepth {
				nested, err := scanLevel(containerRoot, full, sig, strict, depth+1)
				if err != nil {
					return nil, err
				}
				found = append(found, nested...)
			}
			continue
		}

		if sig.DirBased {
			continue
		}
		if d, ok := detectFile(containerRoot, full, sig, strict); ok {
			found = append(found, d)
		}
	}
	return found, nil
}

// detectDir classifies one directory entry of a directory-based type.
func detectDir(containerRoot, dir string, sig Signature, strict bool) (types.DiscoveredArtifact, bool) {
	manifest := findManifest(dir, sig)
	if strict && manifest == "" {
		return types.DiscoveredArtifact{}, false
	}

	signals := 2 // container and kind already matched
	var fm *Frontmatter
	if manifest != "" {
		signals++
		fm = readFrontmatter(manifest)
	} else {
		// Partial match: a single markdown file can stand in for the
		// manifest at reduced confidence.
		if md := soleMarkdown(dir); md != "" {
			fm = readFrontmatter(md)
		} else if !hasRegularFile(dir) {
			debug.Logf("discovery: skipping empty directory %s", dir)
			return types.DiscoveredArtifact{}, false
		}
	}
	if fm != nil && fm.Name != "" {
		signals++
	}

	d := newDiscovered(sig.Type, relName(containerRoot, dir, ""), dir, fm)
	d.Confidence = confidence(signals, strict)
	return d, true
}

// detectFile classifies one file entry of a file-based type.
func detectFile(containerRoot, path string, sig Signature, strict bool) (types.DiscoveredArtifact, bool) {
	name := filepath.Base(path)
	if fileSkipList[name] {
		return types.DiscoveredArtifact{}, false
	}
	extOK := sig.hasExt(name)
	if strict && !extOK {
		return types.DiscoveredArtifact{}, false
	}

	signals := 2
	if extOK {
		signals++
	}
	var fm *Frontmatter
	if strings.EqualFold(filepath.Ext(name), ".md") {
		fm = readFrontmatter(path)
	}
	if fm != nil && fm.Name != "" {
		signals++
	}

	d := newDiscovered(sig.Type, relName(containerRoot, path, filepath.Ext(name)), path, fm)
	d.Confidence = confidence(signals, strict)
	return d, true
}

// findManifest returns the path of the first signature manifest present
// in dir, or empty.
func findManifest(dir string, sig Signature) string {
	for _, m := range sig.Manifests {
		p := filepath.Join(dir, m)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// soleMarkdown returns the only top-level .md file in dir, or empty when
// there are zero or several.
func soleMarkdown(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var md string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		if md != "" {
			return ""
		}
		md = filepath.Join(dir, e.Name())
	}
	return md
}

func hasRegularFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return true
		}
	}
	return false
}

// readFrontmatter loads a manifest's header, logging parse failures at
// debug level and returning nil on any error.
func readFrontmatter(path string) *Frontmatter {
	data, err := os.ReadFile(path) // #nosec G304 - path from directory walk
	if err != nil {
		debug.Logf("discovery: cannot read manifest %s: %v", path, err)
		return nil
	}
	fm, _, err := ExtractFrontmatter(data)
	if err != nil {
		debug.Logf("discovery: malformed frontmatter in %s: %v", path, err)
		return nil
	}
	return fm
}

// relName derives the artifact name from the entry's position under the
// container, slash-separated for nested entries, with ext stripped.
func relName(containerRoot, full, ext string) string {
	rel, err := filepath.Rel(containerRoot, full)
	if err != nil {
		rel = filepath.Base(full)
	}
	rel = strings.TrimSuffix(rel, ext)
	return filepath.ToSlash(rel)
}

func newDiscovered(t types.ArtifactType, fallbackName, path string, fm *Frontmatter) types.DiscoveredArtifact {
	d := types.DiscoveredArtifact{
		Type:         t,
		Name:         fallbackName,
		Path:         path,
		DiscoveredAt: time.Now(),
	}
	if fm != nil {
		if fm.Name != "" {
			d.Name = fm.Name
		}
		d.Description = fm.Description
		d.Version = fm.Version
		d.Source = fm.Source
		d.Scope = types.Scope(fm.Scope)
		d.Tags = dedupeInOrder(fm.Tags)
	}
	return d
}

func confidence(signals int, strict bool) int {
	if strict {
		return 100
	}
	c := signals * signalWeight
	if c > 100 {
		c = 100
	}
	return c
}

// dedupeInOrder drops repeated tags, keeping first occurrences in place.
func dedupeInOrder(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
