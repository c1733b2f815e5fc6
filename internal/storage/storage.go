// Package storage defines the interface for registry and cache backends.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/skillmeat/skillmeat/internal/types"
)

// ErrDBNotInitialized is returned when attempting to use a database feature
// before the database has been initialized.
var ErrDBNotInitialized = errors.New("database not initialized")

// Transaction exposes the subset of Storage that participates in atomic
// multi-operation workflows, most importantly the composite import path
// where a parent, its children, their versions, and the membership pins
// must land together or not at all.
//
// # Transaction Semantics
//
//   - All operations within the transaction share the same database connection
//   - Changes are not visible to other connections until commit
//   - If any operation returns an error, the transaction is rolled back
//   - If the callback function panics, the transaction is rolled back
//   - On successful return from the callback, the transaction is committed
//
// # SQLite Specifics
//
//   - Uses BEGIN IMMEDIATE mode to acquire the write lock early
//   - IMMEDIATE mode serializes concurrent transactions properly
type Transaction interface {
	// Registry operations
	UpsertArtifact(ctx context.Context, a *types.Artifact) error
	GetArtifact(ctx context.Context, uuid string) (*types.Artifact, error)
	FindArtifactByName(ctx context.Context, name string, t types.ArtifactType) (*types.Artifact, error)
	AppendVersion(ctx context.Context, v *types.ArtifactVersion) (*types.ArtifactVersion, error)
	GetVersionByHash(ctx context.Context, contentHash string) (*types.ArtifactVersion, error)
	LatestVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error)

	// Composite operations
	UpsertComposite(ctx context.Context, c *types.CompositeArtifact) error
	DeleteCompositeMemberships(ctx context.Context, compositeID string) error
	AddCompositeMembership(ctx context.Context, m *types.CompositeMembership) error

	// Collection join operations
	UpsertCollectionArtifact(ctx context.Context, ca *types.CollectionArtifact) error
}

// Storage defines the interface for registry and cache backends.
//
// The artifact and artifact-version tables are the authoritative registry:
// they cannot be rebuilt from the filesystem and are never mutated except
// by append. Everything else is a cache projection of the collection
// manifests and may be dropped and recovered.
type Storage interface {
	// Artifacts (registry, authoritative)
	UpsertArtifact(ctx context.Context, a *types.Artifact) error
	GetArtifact(ctx context.Context, uuid string) (*types.Artifact, error)
	GetArtifactByKey(ctx context.Context, t types.ArtifactType, name string) (*types.Artifact, error)
	FindArtifactByName(ctx context.Context, name string, t types.ArtifactType) (*types.Artifact, error)
	ListArtifacts(ctx context.Context, filter types.ArtifactFilter) ([]*types.Artifact, error)
	DeleteArtifact(ctx context.Context, uuid string) error

	// Versions (registry, append-only)
	AppendVersion(ctx context.Context, v *types.ArtifactVersion) (*types.ArtifactVersion, error)
	GetVersionByHash(ctx context.Context, contentHash string) (*types.ArtifactVersion, error)
	LatestVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error)
	RootVersion(ctx context.Context, artifactUUID string) (*types.ArtifactVersion, error)
	VersionChain(ctx context.Context, artifactUUID string) ([]*types.ArtifactVersion, error)
	VersionDepth(ctx context.Context, contentHash string) (int, error)

	// Composites
	UpsertComposite(ctx context.Context, c *types.CompositeArtifact) error
	GetComposite(ctx context.Context, id string) (*types.CompositeArtifact, error)
	ListComposites(ctx context.Context, collectionID string) ([]*types.CompositeArtifact, error)
	AddCompositeMembership(ctx context.Context, m *types.CompositeMembership) error
	GetCompositeMemberships(ctx context.Context, compositeID string) ([]*types.CompositeMembership, error)
	DeleteCompositeMemberships(ctx context.Context, compositeID string) error

	// Projects
	UpsertProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)

	// Collections
	UpsertCollection(ctx context.Context, c *types.Collection) error
	GetCollection(ctx context.Context, id string) (*types.Collection, error)
	ListCollections(ctx context.Context) ([]*types.Collection, error)

	// Collection membership
	UpsertCollectionArtifact(ctx context.Context, ca *types.CollectionArtifact) error
	GetCollectionArtifact(ctx context.Context, collectionID, artifactUUID string) (*types.CollectionArtifact, error)
	ListCollectionArtifacts(ctx context.Context, collectionID string) ([]*types.CollectionArtifact, error)
	UpdateCollectionArtifactTags(ctx context.Context, collectionID, artifactUUID string, tags []string) error

	// Tags (workspace-scoped; slug unique)
	CreateTag(ctx context.Context, tag *types.Tag) (*types.Tag, error)
	GetTagBySlug(ctx context.Context, slug string) (*types.Tag, error)
	ListTags(ctx context.Context) ([]*types.Tag, error)
	RenameTag(ctx context.Context, slug, newName string) (*types.Tag, error)
	DeleteTag(ctx context.Context, slug string) error
	AnyTagWithColor(ctx context.Context) (bool, error)
	TagArtifact(ctx context.Context, artifactUUID string, tagID int64) error
	UntagArtifact(ctx context.Context, artifactUUID string, tagID int64) error
	GetArtifactTags(ctx context.Context, artifactUUID string) ([]*types.Tag, error)
	GetArtifactsByTag(ctx context.Context, tagID int64) ([]string, error)

	// Groups (collection-scoped, ordered)
	CreateGroup(ctx context.Context, g *types.Group) (*types.Group, error)
	GetGroup(ctx context.Context, id int64) (*types.Group, error)
	ListGroups(ctx context.Context, collectionID string) ([]*types.Group, error)
	UpdateGroup(ctx context.Context, g *types.Group) error
	DeleteGroup(ctx context.Context, id int64) error
	CountGroups(ctx context.Context, collectionID string) (int, error)
	AddGroupMember(ctx context.Context, groupID int64, artifactUUID string, position int) error
	RemoveGroupMember(ctx context.Context, groupID int64, artifactUUID string) error
	GetGroupMembers(ctx context.Context, groupID int64) ([]*types.GroupArtifact, error)

	// Deployment sets
	CreateSet(ctx context.Context, s *types.DeploymentSet) (*types.DeploymentSet, error)
	GetSet(ctx context.Context, id int64) (*types.DeploymentSet, error)
	GetSetByName(ctx context.Context, name string) (*types.DeploymentSet, error)
	ListSets(ctx context.Context) ([]*types.DeploymentSet, error)
	DeleteSet(ctx context.Context, id int64) error
	// AddSetMember rejects nested-set members that would make the parent
	// reachable from the child (cycle guard) before writing anything.
	AddSetMember(ctx context.Context, m *types.DeploymentSetMember) error
	RemoveSetMember(ctx context.Context, setID int64, position int) error
	GetSetMembers(ctx context.Context, setID int64) ([]*types.DeploymentSetMember, error)
	GetAllSetMembers(ctx context.Context) (map[int64][]*types.DeploymentSetMember, error)
	GetAllGroupMembers(ctx context.Context) (map[int64][]string, error)

	// Deployment profiles
	UpsertProfile(ctx context.Context, p *types.DeploymentProfile) error
	GetProfile(ctx context.Context, projectID, profileID string) (*types.DeploymentProfile, error)
	ListProfiles(ctx context.Context, projectID string) ([]*types.DeploymentProfile, error)
	DeleteProfile(ctx context.Context, projectID, profileID string) error

	// Search. Uses the full-text index when available and degrades to
	// substring matching when it is not.
	SearchArtifacts(ctx context.Context, query string, filter types.ArtifactFilter) ([]*types.Artifact, error)

	// Config
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	GetAllConfig(ctx context.Context) (map[string]string, error)
	DeleteConfig(ctx context.Context, key string) error

	// Metadata (internal state like schema markers and recovery stamps)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// Transactions
	//
	// RunInTransaction executes a function within a database transaction.
	//
	// Transaction behavior:
	//   - If fn returns nil, the transaction is committed
	//   - If fn returns an error, the transaction is rolled back
	//   - If fn panics, the transaction is rolled back and the panic is re-raised
	//   - Uses BEGIN IMMEDIATE for SQLite to acquire the write lock early
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error

	// Database path (for diagnostics and watchers)
	Path() string

	// UnderlyingDB returns the underlying *sql.DB connection.
	// This is provided for extensions that need to create their own tables
	// in the same database. Extensions should use foreign keys to reference
	// core tables.
	// WARNING: Direct database access bypasses the storage layer. Use with caution.
	UnderlyingDB() *sql.DB

	// UnderlyingConn returns a single connection from the pool for scoped use.
	// Useful for migrations and DDL that benefit from explicit connection
	// lifetime. The caller MUST close the connection when done.
	UnderlyingConn(ctx context.Context) (*sql.Conn, error)
}
