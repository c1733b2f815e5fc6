// Package types defines the core domain types shared across skillmeat.
package types

import (
	"time"
)

// ArtifactType classifies an artifact by what it is, not where it lives.
type ArtifactType string

const (
	TypeSkill   ArtifactType = "skill"
	TypeCommand ArtifactType = "command"
	TypeAgent   ArtifactType = "agent"
	TypeHook    ArtifactType = "hook"
	TypeMCP     ArtifactType = "mcp"

	// Context entities: deployable project context rather than executable units.
	TypeConfig   ArtifactType = "config"
	TypeSpec     ArtifactType = "spec"
	TypeRule     ArtifactType = "rule"
	TypeTemplate ArtifactType = "template"
)

// AllArtifactTypes lists every valid artifact type in a stable order.
var AllArtifactTypes = []ArtifactType{
	TypeSkill, TypeCommand, TypeAgent, TypeHook, TypeMCP,
	TypeConfig, TypeSpec, TypeRule, TypeTemplate,
}

// IsValid reports whether t is a known artifact type.
func (t ArtifactType) IsValid() bool {
	for _, v := range AllArtifactTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ChangeOrigin records what caused a version row to be written.
// The set is closed; the cache schema enforces it with a check constraint.
type ChangeOrigin string

const (
	OriginDeployment ChangeOrigin = "deployment"
	OriginSync       ChangeOrigin = "sync"
	OriginLocalMod   ChangeOrigin = "local_modification"
)

// IsValid reports whether o is a known change origin.
func (o ChangeOrigin) IsValid() bool {
	return o == OriginDeployment || o == OriginSync || o == OriginLocalMod
}

// Platform identifies the assistant tooling a deployment profile targets.
type Platform string

const (
	PlatformClaudeCode Platform = "claude_code"
	PlatformCodex      Platform = "codex"
	PlatformGemini     Platform = "gemini"
	PlatformCursor     Platform = "cursor"
	PlatformOther      Platform = "other"
)

// IsValid reports whether p is a recognized platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformClaudeCode, PlatformCodex, PlatformGemini, PlatformCursor, PlatformOther:
		return true
	}
	return false
}

// KnownProfileRoots are the directory names recognized as platform roots.
// Path rewriting strips any of these prefixes before applying a profile's own root.
var KnownProfileRoots = []string{".claude", ".codex", ".gemini", ".cursor"}

// RootDirForPlatform returns the conventional root directory for a platform,
// or empty for PlatformOther.
func RootDirForPlatform(p Platform) string {
	switch p {
	case PlatformClaudeCode:
		return ".claude"
	case PlatformCodex:
		return ".codex"
	case PlatformGemini:
		return ".gemini"
	case PlatformCursor:
		return ".cursor"
	}
	return ""
}

// PlatformForRootDir is the inverse mapping; unrecognized roots are
// PlatformOther.
func PlatformForRootDir(root string) Platform {
	switch root {
	case ".claude":
		return PlatformClaudeCode
	case ".codex":
		return PlatformCodex
	case ".gemini":
		return PlatformGemini
	case ".cursor":
		return PlatformCursor
	}
	return PlatformOther
}

// Scope is where a discovered artifact is meant to live.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeLocal Scope = "local"
)

// Artifact is a named, typed unit of content tracked by the registry.
// Registry rows are authoritative: the cache may be rebuilt, artifacts and
// their versions may not.
type Artifact struct {
	UUID            string            `json:"uuid"`
	ProjectID       string            `json:"project_id,omitempty"`
	Type            ArtifactType      `json:"type"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	SourceURL       string            `json:"source_url,omitempty"`
	DeployedVersion string            `json:"deployed_version,omitempty"`
	UpstreamVersion string            `json:"upstream_version,omitempty"`
	Outdated        bool              `json:"outdated,omitempty"`
	LocalModified   bool              `json:"local_modified,omitempty"`
	TargetPlatforms []Platform        `json:"target_platforms,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Key returns the human identifier "<type>:<name>".
func (a *Artifact) Key() string {
	return MakeKey(a.Type, a.Name)
}

// ArtifactVersion is one append-only row of the version graph.
// ContentHash is unique across the whole registry; Lineage is the ordered
// hash chain root..current with Lineage[len-1] == ContentHash.
type ArtifactVersion struct {
	ID           int64        `json:"id"`
	ArtifactUUID string       `json:"artifact_uuid"`
	ContentHash  string       `json:"content_hash"`
	ParentHash   string       `json:"parent_hash,omitempty"` // empty = root version
	ChangeOrigin ChangeOrigin `json:"change_origin"`
	Lineage      []string     `json:"version_lineage,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// IsRoot reports whether the version has no parent.
func (v *ArtifactVersion) IsRoot() bool { return v.ParentHash == "" }

// Depth is the version's distance from its root: len(lineage)-1,
// or 0 when the lineage is missing (legacy rows).
func (v *ArtifactVersion) Depth() int {
	if len(v.Lineage) == 0 {
		return 0
	}
	return len(v.Lineage) - 1
}

// CompositeType distinguishes the two accepted composite shapes.
type CompositeType string

const (
	CompositePlugin CompositeType = "plugin"
	CompositeSkill  CompositeType = "skill" // skill with embedded members
)

// IsValid reports whether c is an accepted composite shape. Anything else
// is rejected at ingest.
func (c CompositeType) IsValid() bool {
	return c == CompositePlugin || c == CompositeSkill
}

// CompositeArtifact is a parent bundling an ordered list of children.
// ID follows "composite:<slug>".
type CompositeArtifact struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	CompositeType CompositeType `json:"composite_type"`
	SourceURL     string        `json:"source_url,omitempty"`
	CollectionID  string        `json:"collection_id,omitempty"`
	Description   string        `json:"description,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CompositeMembership pins one child of a composite to the exact content
// imported. Later updates to the child never move the pin.
type CompositeMembership struct {
	CompositeID       string `json:"composite_id"`
	ChildUUID         string `json:"child_uuid"`
	Position          int    `json:"position"`
	PinnedVersionHash string `json:"pinned_version_hash"`
	RelationshipType  string `json:"relationship_type"`
	CollectionID      string `json:"collection_id,omitempty"`
}

// Project is a user workspace artifacts deploy into.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// SentinelProjectID owns collection-scoped artifacts that belong to no
// user project.
const SentinelProjectID = "collection"

// Collection is a curated on-disk directory with a TOML manifest.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CollectionArtifact joins an artifact into a collection with its
// collection-relative path and cached tag list.
type CollectionArtifact struct {
	CollectionID    string    `json:"collection_id"`
	ArtifactUUID    string    `json:"artifact_uuid"`
	Path            string    `json:"path"`
	Origin          string    `json:"origin,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	ResolvedVersion string    `json:"resolved_version,omitempty"`
	Version         string    `json:"version,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}

// Tag is a workspace-scoped label. Slug is unique; Color is an optional
// hex string, empty when unset.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Group is a collection-scoped ordered bucket of artifacts.
type Group struct {
	ID           int64  `json:"id"`
	CollectionID string `json:"collection_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Position     int    `json:"position"`
}

// GroupArtifact is the ordered group membership join.
type GroupArtifact struct {
	GroupID      int64  `json:"group_id"`
	ArtifactUUID string `json:"artifact_uuid"`
	Position     int    `json:"position"`
}

// DeploymentSet is a named, owned, ordered composition of artifacts,
// groups, and nested sets.
type DeploymentSet struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SetMemberKind says which of the three member references is populated.
type SetMemberKind string

const (
	MemberArtifact SetMemberKind = "artifact"
	MemberGroup    SetMemberKind = "group"
	MemberSet      SetMemberKind = "set"
)

// DeploymentSetMember is one ordered member of a set. Exactly one of
// ArtifactUUID, GroupID, ChildSetID is set, matching Kind; the cache
// schema enforces this with a check constraint.
type DeploymentSetMember struct {
	SetID        int64         `json:"set_id"`
	Position     int           `json:"position"`
	Kind         SetMemberKind `json:"kind"`
	ArtifactUUID string        `json:"artifact_uuid,omitempty"`
	GroupID      int64         `json:"group_id,omitempty"`
	ChildSetID   int64         `json:"child_set_id,omitempty"`
}

// DeploymentProfile maps logical artifact paths onto one platform root
// inside one project. (ProjectID, ProfileID) is unique.
type DeploymentProfile struct {
	ProfileID       string            `json:"profile_id"`
	ProjectID       string            `json:"project_id"`
	Platform        Platform          `json:"platform"`
	RootDir         string            `json:"root_dir"`
	ArtifactPathMap map[string]string `json:"artifact_path_map,omitempty"`
	ConfigFilenames []string          `json:"config_filenames,omitempty"`
	ContextPrefixes []string          `json:"context_prefixes,omitempty"`
	SupportedTypes  []ArtifactType    `json:"supported_types,omitempty"`
}

// Supports reports whether the profile accepts the given type. An empty
// SupportedTypes list means all types.
func (p *DeploymentProfile) Supports(t ArtifactType) bool {
	if len(p.SupportedTypes) == 0 {
		return true
	}
	for _, s := range p.SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// DeploymentRecord is one row of the per-profile-root tracker file.
// TOML tags define the on-disk field names and must stay stable.
type DeploymentRecord struct {
	ArtifactName        string    `toml:"artifact_name" json:"artifact_name"`
	ArtifactType        string    `toml:"artifact_type" json:"artifact_type"`
	ArtifactUUID        string    `toml:"artifact_uuid,omitempty" json:"artifact_uuid,omitempty"`
	ArtifactPath        string    `toml:"artifact_path" json:"artifact_path"`
	FromCollection      string    `toml:"from_collection,omitempty" json:"from_collection,omitempty"`
	DeployedAt          time.Time `toml:"deployed_at" json:"deployed_at"`
	CollectionSHA       string    `toml:"collection_sha,omitempty" json:"collection_sha,omitempty"`
	ContentHash         string    `toml:"content_hash,omitempty" json:"content_hash,omitempty"`
	MergeBaseSnapshot   string    `toml:"merge_base_snapshot,omitempty" json:"merge_base_snapshot,omitempty"`
	LocalModifications  bool      `toml:"local_modifications,omitempty" json:"local_modifications,omitempty"`
	VersionLineage      []string  `toml:"version_lineage,omitempty" json:"version_lineage,omitempty"`
	DeploymentProfileID string    `toml:"deployment_profile_id,omitempty" json:"deployment_profile_id,omitempty"`
	Platform            string    `toml:"platform,omitempty" json:"platform,omitempty"`
	ProfileRootDir      string    `toml:"profile_root_dir,omitempty" json:"profile_root_dir,omitempty"`
}

// DiscoveredArtifact is one detection hit from a tree scan.
type DiscoveredArtifact struct {
	Type         ArtifactType `json:"type"`
	Name         string       `json:"name"`
	Path         string       `json:"path"`
	Source       string       `json:"source,omitempty"`
	Version      string       `json:"version,omitempty"`
	Scope        Scope        `json:"scope,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Description  string       `json:"description,omitempty"`
	Confidence   int          `json:"confidence"`
	DiscoveredAt time.Time    `json:"discovered_at"`
}

// Key returns the artifact key "<type>:<name>" for the discovery hit.
func (d *DiscoveredArtifact) Key() string {
	return MakeKey(d.Type, d.Name)
}

// DiscoveredGraph is a detected composite: the parent plus its flat
// children in discovery order. For plugin bundles the parent is not an
// artifact of its own and carries only naming metadata; for skill
// composites the parent is the skill artifact.
type DiscoveredGraph struct {
	Parent        DiscoveredArtifact   `json:"parent"`
	Children      []DiscoveredArtifact `json:"children"`
	CompositeType CompositeType        `json:"composite_type"`
	// MetaFiles maps meta-file names (plugin.json, README.md) to their
	// absolute on-disk source paths for staging at import time.
	MetaFiles map[string]string `json:"meta_files,omitempty"`
}

// ImportResult reports a composite import.
type ImportResult struct {
	Success          bool     `json:"success"`
	PluginID         string   `json:"plugin_id,omitempty"`
	ChildrenImported int      `json:"children_imported"`
	ChildrenReused   int      `json:"children_reused"`
	Errors           []string `json:"errors,omitempty"`
	TransactionID    string   `json:"transaction_id"`
}

// ArtifactFilter narrows artifact listings.
type ArtifactFilter struct {
	Type          ArtifactType
	CollectionID  string
	ProjectID     string
	Tags          []string
	Search        string
	Outdated      *bool
	LocalModified *bool
	Limit         int
}

// DedupDecision is what the resolver tells an importer to do with an
// incoming (name, type, hash) triple.
type DedupDecision string

const (
	LinkExisting      DedupDecision = "link_existing"
	CreateNewVersion  DedupDecision = "create_new_version"
	CreateNewArtifact DedupDecision = "create_new_artifact"
)

// DedupResult carries the decision plus whatever rows matched.
type DedupResult struct {
	Decision     DedupDecision `json:"decision"`
	ArtifactUUID string        `json:"artifact_uuid,omitempty"`
	VersionID    int64         `json:"version_id,omitempty"`
	ContentHash  string        `json:"content_hash"`
}
