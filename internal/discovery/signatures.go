// Package discovery scans directory trees for deployable artifacts.
//
// Detection is signature-driven: every artifact type declares which
// container directories may hold it, whether an artifact is a file or a
// directory, and which manifest files mark it. Scanning runs in strict
// mode (single-artifact checks, all constraints required) or heuristic
// mode (bulk discovery, partial matches scored by signal count).
package discovery

import (
	"path/filepath"
	"strings"

	"github.com/skillmeat/skillmeat/internal/types"
)

// Signature declares how one artifact type appears on disk.
type Signature struct {
	Type      types.ArtifactType
	Canonical string   // canonical container directory name
	Aliases   []string // accepted container spellings, compared case-insensitively
	DirBased  bool     // entries are directories; files otherwise
	Manifests []string // files that mark a directory entry as this type
	FileExts  []string // extensions accepted for file-based entries
	// AllowNesting permits artifacts below the container's first level,
	// up to maxNestingDepth.
	AllowNesting bool
}

// ArtifactSignatures is the fixed detection table, one row per type.
var ArtifactSignatures = []Signature{
	{
		Type:         types.TypeSkill,
		Canonical:    "skills",
		Aliases:      []string{"skills"},
		DirBased:     true,
		Manifests:    []string{"SKILL.md"},
		AllowNesting: true,
	},
	{
		Type:         types.TypeCommand,
		Canonical:    "commands",
		Aliases:      []string{"commands"},
		Manifests:    []string{"COMMAND.md"},
		FileExts:     []string{".md"},
		AllowNesting: true,
	},
	{
		Type:      types.TypeAgent,
		Canonical: "agents",
		Aliases:   []string{"agents", "subagents"},
		Manifests: []string{"AGENT.md"},
		FileExts:  []string{".md"},
	},
	{
		Type:      types.TypeHook,
		Canonical: "hooks",
		Aliases:   []string{"hooks"},
		FileExts:  []string{".json", ".sh"},
	},
	{
		Type:      types.TypeMCP,
		Canonical: "mcp",
		Aliases:   []string{"mcp", "mcp-servers", "mcp_servers"},
		DirBased:  true,
		Manifests: []string{"mcp.json"},
	},
	{
		Type:      types.TypeConfig,
		Canonical: "config",
		Aliases:   []string{"config", "configs"},
		FileExts:  []string{".json", ".toml", ".yaml", ".yml"},
	},
	{
		Type:         types.TypeSpec,
		Canonical:    "specs",
		Aliases:      []string{"specs", "spec"},
		FileExts:     []string{".md"},
		AllowNesting: true,
	},
	{
		Type:      types.TypeRule,
		Canonical: "rules",
		Aliases:   []string{"rules"},
		FileExts:  []string{".md"},
	},
	{
		Type:      types.TypeTemplate,
		Canonical: "templates",
		Aliases:   []string{"templates"},
		FileExts:  []string{".md"},
	},
}

var (
	containerIndex map[string]Signature
	typeIndex      map[types.ArtifactType]Signature
)

func init() {
	containerIndex = make(map[string]Signature)
	typeIndex = make(map[types.ArtifactType]Signature)
	for _, sig := range ArtifactSignatures {
		typeIndex[sig.Type] = sig
		for _, alias := range sig.Aliases {
			containerIndex[strings.ToLower(alias)] = sig
		}
	}
}

// NormalizeContainer resolves a container directory name, in any accepted
// spelling or case, to its signature.
func NormalizeContainer(name string) (Signature, bool) {
	sig, ok := containerIndex[strings.ToLower(name)]
	return sig, ok
}

// SignatureFor returns the signature for an artifact type.
func SignatureFor(t types.ArtifactType) (Signature, bool) {
	sig, ok := typeIndex[t]
	return sig, ok
}

// hasExt reports whether a file name carries one of the signature's
// accepted extensions.
func (s Signature) hasExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.FileExts {
		if ext == e {
			return true
		}
	}
	return false
}
