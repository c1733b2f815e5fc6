// Package skillmeat provides a minimal public API for extending sm with
// custom tooling.
//
// Most extensions should use direct SQL queries against sm's database.
// This package exports only the essential types and functions needed for
// Go-based extensions that want to use sm's storage layer programmatically.
package skillmeat

import (
	"context"

	"github.com/skillmeat/skillmeat/internal/config"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
)

// Storage is the interface for skillmeat storage operations.
type Storage = storage.Storage

// Transaction provides atomic multi-operation support within a database
// transaction. Use Storage.RunInTransaction() to obtain a Transaction
// instance.
type Transaction = storage.Transaction

// NewSQLiteStorage creates a new SQLite storage instance at the given path.
// The schema is created and migrated on open.
func NewSQLiteStorage(ctx context.Context, dbPath string) (Storage, error) {
	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// DefaultRegistryPath returns the registry database location: the
// registry.db config key when set, ~/.skillmeat/skillmeat.db otherwise.
func DefaultRegistryPath() string {
	return config.RegistryDB()
}

// DefaultCollectionDir returns the active collection root: the
// collection.dir config key when set, ~/.skillmeat/collections/main
// otherwise.
func DefaultCollectionDir() string {
	return config.CollectionDir()
}

// Core types from internal/types
type (
	Artifact            = types.Artifact
	ArtifactVersion     = types.ArtifactVersion
	ArtifactType        = types.ArtifactType
	ArtifactFilter      = types.ArtifactFilter
	ChangeOrigin        = types.ChangeOrigin
	Platform            = types.Platform
	CompositeArtifact   = types.CompositeArtifact
	CompositeMembership = types.CompositeMembership
	CompositeType       = types.CompositeType
	Collection          = types.Collection
	CollectionArtifact  = types.CollectionArtifact
	Project             = types.Project
	Tag                 = types.Tag
	Group               = types.Group
	GroupArtifact       = types.GroupArtifact
	DeploymentSet       = types.DeploymentSet
	DeploymentSetMember = types.DeploymentSetMember
	SetMemberKind       = types.SetMemberKind
	DeploymentProfile   = types.DeploymentProfile
	DeploymentRecord    = types.DeploymentRecord
	DiscoveredArtifact  = types.DiscoveredArtifact
	DiscoveredGraph     = types.DiscoveredGraph
	ImportResult        = types.ImportResult
	DedupDecision       = types.DedupDecision
	DedupResult         = types.DedupResult
	Error               = types.Error
	ErrorKind           = types.ErrorKind
)

// ArtifactType constants
const (
	TypeSkill    = types.TypeSkill
	TypeCommand  = types.TypeCommand
	TypeAgent    = types.TypeAgent
	TypeHook     = types.TypeHook
	TypeMCP      = types.TypeMCP
	TypeConfig   = types.TypeConfig
	TypeSpec     = types.TypeSpec
	TypeRule     = types.TypeRule
	TypeTemplate = types.TypeTemplate
)

// ChangeOrigin constants
const (
	OriginDeployment = types.OriginDeployment
	OriginSync       = types.OriginSync
	OriginLocalMod   = types.OriginLocalMod
)

// Platform constants
const (
	PlatformClaudeCode = types.PlatformClaudeCode
	PlatformCodex      = types.PlatformCodex
	PlatformGemini     = types.PlatformGemini
	PlatformCursor     = types.PlatformCursor
	PlatformOther      = types.PlatformOther
)

// CompositeType constants
const (
	CompositePlugin = types.CompositePlugin
	CompositeSkill  = types.CompositeSkill
)

// SetMemberKind constants
const (
	MemberArtifact = types.MemberArtifact
	MemberGroup    = types.MemberGroup
	MemberSet      = types.MemberSet
)

// DedupDecision constants
const (
	LinkExisting      = types.LinkExisting
	CreateNewVersion  = types.CreateNewVersion
	CreateNewArtifact = types.CreateNewArtifact
)

// MakeKey builds the artifact key "<type>:<name>".
func MakeKey(t ArtifactType, name string) string {
	return types.MakeKey(t, name)
}

// ParseKey splits an artifact key "<type>:<name>" into its parts.
func ParseKey(key string) (ArtifactType, string, error) {
	return types.ParseKey(key)
}
