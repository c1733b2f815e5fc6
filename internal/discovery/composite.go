package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

// pluginManifestName marks a container as a plugin bundle.
const pluginManifestName = "plugin.json"

// pluginManifest is the subset of plugin.json the scanner consumes.
type pluginManifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Author      string `json:"author"`
}

// DetectComposite classifies a directory as a composite. A composite is
// one of:
//   - a plugin bundle, marked by plugin.json at the root or by two or
//     more recognized single-type subcontainers;
//   - a skill with embedded members, marked by SKILL.md at the root plus
//     at least one recognized subcontainer.
//
// A nil graph means the directory is an ordinary artifact (or nothing).
func DetectComposite(dir string) (*types.DiscoveredGraph, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewDetailError(types.KindNotFound, "discovery.DetectComposite",
				"missing_path", "%s does not exist", dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	children, populated, err := scanSubcontainers(dir)
	if err != nil {
		return nil, err
	}

	if hasFile(filepath.Join(dir, pluginManifestName)) {
		graph := &types.DiscoveredGraph{
			Parent:        pluginParent(dir),
			Children:      children,
			CompositeType: types.CompositePlugin,
			MetaFiles:     collectMetaFiles(dir),
		}
		return graph, nil
	}

	if skillSig, ok := SignatureFor(types.TypeSkill); ok && findManifest(dir, skillSig) != "" && populated >= 1 {
		parent, ok := detectDir(filepath.Dir(dir), dir, skillSig, true)
		if !ok {
			return nil, nil
		}
		return &types.DiscoveredGraph{
			Parent:        parent,
			Children:      children,
			CompositeType: types.CompositeSkill,
		}, nil
	}

	if populated >= 2 {
		return &types.DiscoveredGraph{
			Parent:        dirParent(dir),
			Children:      children,
			CompositeType: types.CompositePlugin,
			MetaFiles:     collectMetaFiles(dir),
		}, nil
	}

	return nil, nil
}

// scanSubcontainers discovers artifacts in every recognized container
// directly under dir. populated counts containers that yielded at least
// one artifact.
func scanSubcontainers(dir string) (children []types.DiscoveredArtifact, populated int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sig, ok := NormalizeContainer(e.Name())
		if !ok {
			continue
		}
		hits, err := scanContainer(filepath.Join(dir, e.Name()), sig, false)
		if err != nil {
			return nil, 0, err
		}
		if len(hits) > 0 {
			populated++
			children = append(children, hits...)
		}
	}
	return children, populated, nil
}

// pluginParent builds the graph parent from plugin.json, falling back to
// the directory name when the manifest does not parse.
func pluginParent(dir string) types.DiscoveredArtifact {
	parent := dirParent(dir)
	data, err := os.ReadFile(filepath.Join(dir, pluginManifestName)) // #nosec G304 - path from directory walk
	if err != nil {
		debug.Logf("discovery: cannot read %s in %s: %v", pluginManifestName, dir, err)
		return parent
	}
	var m pluginManifest
	if err := json.Unmarshal(data, &m); err != nil {
		debug.Logf("discovery: malformed %s in %s: %v", pluginManifestName, dir, err)
		return parent
	}
	if m.Name != "" {
		parent.Name = m.Name
	}
	parent.Description = m.Description
	parent.Version = m.Version
	return parent
}

func dirParent(dir string) types.DiscoveredArtifact {
	return types.DiscoveredArtifact{
		Name:         filepath.Base(dir),
		Path:         dir,
		DiscoveredAt: time.Now(),
	}
}

// collectMetaFiles lists the regular files at the bundle root, keyed by
// name. These are staged next to the imported plugin verbatim.
func collectMetaFiles(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	meta := make(map[string]string)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		meta[e.Name()] = filepath.Join(dir, e.Name())
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func hasFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
