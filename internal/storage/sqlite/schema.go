package sqlite

const schema = `
-- Projects table
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL CHECK(length(name) <= 200),
    path TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Collections table (cache projection of on-disk collections)
CREATE TABLE IF NOT EXISTS collections (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL CHECK(length(name) <= 200),
    path TEXT NOT NULL DEFAULT '',
    version TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Artifacts table (registry; authoritative, not rebuildable)
-- name uses NOCASE so dedup lookups are case-insensitive and index-backed
CREATE TABLE IF NOT EXISTS artifacts (
    uuid TEXT PRIMARY KEY,
    project_id TEXT NOT NULL DEFAULT 'collection',
    type TEXT NOT NULL CHECK(type IN ('skill','command','agent','hook','mcp','config','spec','rule','template')),
    name TEXT NOT NULL COLLATE NOCASE CHECK(length(name) <= 500),
    description TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    deployed_version TEXT NOT NULL DEFAULT '',
    upstream_version TEXT NOT NULL DEFAULT '',
    outdated INTEGER NOT NULL DEFAULT 0,
    local_modified INTEGER NOT NULL DEFAULT 0,
    target_platforms TEXT NOT NULL DEFAULT '[]',  -- JSON array
    metadata TEXT NOT NULL DEFAULT '{}',          -- JSON object
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_name_type ON artifacts(name, type);
CREATE INDEX IF NOT EXISTS idx_artifacts_project ON artifacts(project_id);

-- Artifact versions table (registry; append-only, never mutated)
-- content_hash is globally unique: the dedup resolver depends on it
CREATE TABLE IF NOT EXISTS artifact_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    artifact_uuid TEXT NOT NULL,
    content_hash TEXT NOT NULL UNIQUE CHECK(length(content_hash) = 64),
    parent_hash TEXT,
    change_origin TEXT NOT NULL CHECK(change_origin IN ('deployment','sync','local_modification')),
    version_lineage TEXT NOT NULL DEFAULT '[]',   -- JSON array, root..current
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (artifact_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_versions_artifact ON artifact_versions(artifact_uuid);
CREATE INDEX IF NOT EXISTS idx_versions_parent ON artifact_versions(parent_hash);

-- Collection membership join (cache; rebuildable from collection.toml)
CREATE TABLE IF NOT EXISTS collection_artifacts (
    collection_id TEXT NOT NULL,
    artifact_uuid TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL DEFAULT '',
    tags_json TEXT NOT NULL DEFAULT '[]',
    resolved_version TEXT NOT NULL DEFAULT '',
    version TEXT NOT NULL DEFAULT '',
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection_id, artifact_uuid),
    FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE,
    FOREIGN KEY (artifact_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_collection_artifacts_artifact ON collection_artifacts(artifact_uuid);

-- Tags table (workspace-scoped; slug unique)
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    color TEXT,                                   -- hex string; NULL when unset
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS artifact_tags (
    artifact_uuid TEXT NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (artifact_uuid, tag_id),
    FOREIGN KEY (artifact_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_artifact_tags_tag ON artifact_tags(tag_id);

-- Groups table (collection-scoped, ordered)
-- "groups" is a window-frame keyword in SQLite; artifact_groups avoids it
CREATE TABLE IF NOT EXISTS artifact_groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    collection_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    UNIQUE (collection_id, name),
    FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id INTEGER NOT NULL,
    artifact_uuid TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (group_id, artifact_uuid),
    FOREIGN KEY (group_id) REFERENCES artifact_groups(id) ON DELETE CASCADE,
    FOREIGN KEY (artifact_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_group_members_artifact ON group_members(artifact_uuid);

-- Composite artifacts (plugins and skills with embedded members)
CREATE TABLE IF NOT EXISTS composite_artifacts (
    id TEXT PRIMARY KEY,                          -- "composite:<slug>"
    name TEXT NOT NULL,
    composite_type TEXT NOT NULL CHECK(composite_type IN ('plugin','skill')),
    source_url TEXT NOT NULL DEFAULT '',
    collection_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Membership pins: the child's exact content at import time
-- pinned_version_hash must reference a live version row
CREATE TABLE IF NOT EXISTS composite_memberships (
    composite_id TEXT NOT NULL,
    child_uuid TEXT NOT NULL,
    position INTEGER NOT NULL,
    pinned_version_hash TEXT NOT NULL,
    relationship_type TEXT NOT NULL DEFAULT 'contains',
    collection_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (composite_id, child_uuid),
    FOREIGN KEY (composite_id) REFERENCES composite_artifacts(id) ON DELETE CASCADE,
    FOREIGN KEY (child_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE,
    FOREIGN KEY (pinned_version_hash) REFERENCES artifact_versions(content_hash)
);

CREATE INDEX IF NOT EXISTS idx_composite_memberships_child ON composite_memberships(child_uuid);

-- Deployment sets
CREATE TABLE IF NOT EXISTS deployment_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    owner TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',              -- JSON array
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- A member is exactly one of artifact / group / nested set
CREATE TABLE IF NOT EXISTS deployment_set_members (
    set_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    artifact_uuid TEXT,
    group_id INTEGER,
    child_set_id INTEGER,
    PRIMARY KEY (set_id, position),
    FOREIGN KEY (set_id) REFERENCES deployment_sets(id) ON DELETE CASCADE,
    FOREIGN KEY (artifact_uuid) REFERENCES artifacts(uuid) ON DELETE CASCADE,
    FOREIGN KEY (group_id) REFERENCES artifact_groups(id) ON DELETE CASCADE,
    FOREIGN KEY (child_set_id) REFERENCES deployment_sets(id) ON DELETE CASCADE,
    CHECK (
        (artifact_uuid IS NOT NULL AND group_id IS NULL AND child_set_id IS NULL) OR
        (artifact_uuid IS NULL AND group_id IS NOT NULL AND child_set_id IS NULL) OR
        (artifact_uuid IS NULL AND group_id IS NULL AND child_set_id IS NOT NULL)
    )
);

CREATE INDEX IF NOT EXISTS idx_set_members_child_set ON deployment_set_members(child_set_id);

-- Deployment profiles: (project_id, profile_id) unique
CREATE TABLE IF NOT EXISTS deployment_profiles (
    project_id TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    platform TEXT NOT NULL CHECK(platform IN ('claude_code','codex','gemini','cursor','other')),
    root_dir TEXT NOT NULL,
    artifact_path_map TEXT NOT NULL DEFAULT '{}', -- JSON object type -> subdir
    config_filenames TEXT NOT NULL DEFAULT '[]',  -- JSON array
    context_prefixes TEXT NOT NULL DEFAULT '[]',  -- JSON array
    supported_types TEXT NOT NULL DEFAULT '[]',   -- JSON array
    PRIMARY KEY (project_id, profile_id)
);

-- Config table (user-visible settings)
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Metadata table (internal state: schema markers, recovery stamps)
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// searchSchema creates the optional full-text index over artifacts.
// It is applied separately from the base schema because FTS5 may be
// unavailable in the linked SQLite build; search then degrades to
// substring queries.
const searchSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS artifact_search USING fts5(
    uuid UNINDEXED,
    name, description, tags,
    tokenize='porter unicode61'
);
`
