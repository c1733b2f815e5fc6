// Package collection reads and writes the on-disk collection store: the
// collection.toml manifest plus the YAML frontmatter of the artifact
// manifests inside it. The filesystem is authoritative for everything
// here; the database only caches it.
package collection

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
)

// ManifestName is the collection manifest file at the collection root.
const ManifestName = "collection.toml"

// ArtifactsDirName is where artifact containers live under a collection.
const ArtifactsDirName = "artifacts"

const manifestVersion = "1.0"

const (
	lockTimeout = 3 * time.Second
	lockRetry   = 100 * time.Millisecond
)

// Manifest mirrors collection.toml.
type Manifest struct {
	Collection     Meta            `toml:"collection"`
	TagDefinitions []TagDefinition `toml:"tag_definitions,omitempty"`
	Groups         []GroupEntry    `toml:"groups,omitempty"`
	Artifacts      []ArtifactEntry `toml:"artifacts,omitempty"`
}

// Meta is the [collection] table.
type Meta struct {
	Name    string    `toml:"name"`
	Version string    `toml:"version,omitempty"`
	Created time.Time `toml:"created"`
	Updated time.Time `toml:"updated"`
}

// TagDefinition is one [[tag_definitions]] entry. Color is a hex string
// or empty; Save coerces anything else to empty.
type TagDefinition struct {
	Name        string `toml:"name"`
	Slug        string `toml:"slug"`
	Color       string `toml:"color,omitempty"`
	Description string `toml:"description,omitempty"`
}

// GroupEntry is one [[groups]] entry. Members are artifact keys in
// "<type>:<name>" form.
type GroupEntry struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description,omitempty"`
	Color       string   `toml:"color,omitempty"`
	Icon        string   `toml:"icon,omitempty"`
	Position    int      `toml:"position"`
	Members     []string `toml:"members,omitempty"`
}

// ArtifactEntry is one [[artifacts]] entry: where an artifact lives
// inside the collection and what the collection knows about it.
type ArtifactEntry struct {
	Type     string            `toml:"type"`
	Name     string            `toml:"name"`
	Path     string            `toml:"path"`
	Origin   string            `toml:"origin,omitempty"`
	Added    time.Time         `toml:"added"`
	Tags     []string          `toml:"tags,omitempty"`
	Metadata map[string]string `toml:"metadata,omitempty"`
}

// Key returns the entry's artifact key "<type>:<name>".
func (e *ArtifactEntry) Key() string {
	return types.MakeKey(types.ArtifactType(e.Type), e.Name)
}

// Store is a handle on one collection directory. Handles are cheap;
// every Store for the same root shares the same process-level lock.
type Store struct {
	root string
}

// NewStore returns a store for the collection rooted at root. Nothing is
// read or created until an operation runs.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the collection root directory.
func (s *Store) Root() string { return s.root }

// ManifestPath returns the collection.toml location.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.root, ManifestName)
}

// ArtifactsDir returns the artifact container root.
func (s *Store) ArtifactsDir() string {
	return filepath.Join(s.root, ArtifactsDirName)
}

// Init creates the collection skeleton: the root, the artifacts
// directory, and a fresh manifest. Initializing over an existing
// manifest is a conflict.
func (s *Store) Init(ctx context.Context, name string) (*Manifest, error) {
	const op = "collection.Init"
	if _, err := os.Stat(s.ManifestPath()); err == nil {
		return nil, types.NewDetailError(types.KindConflict, op,
			"already_initialized", "collection already exists at %s", s.root)
	}
	if err := utils.EnsureDir(s.ArtifactsDir()); err != nil {
		return nil, types.WrapError(types.KindTransientIO, op, err)
	}

	now := time.Now().UTC()
	m := &Manifest{Collection: Meta{
		Name:    name,
		Version: manifestVersion,
		Created: now,
		Updated: now,
	}}
	if err := s.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads and parses collection.toml. A missing manifest is a
// not_found with detail "no_collection_toml"; a manifest that does not
// parse is a validation error with detail "toml_read_error". Reads take
// no lock: writes replace the file by rename, so a reader sees either
// the old manifest or the new one, never a torn one.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	const op = "collection.Load"
	data, err := os.ReadFile(s.ManifestPath()) // #nosec G304 - path derived from collection root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewDetailError(types.KindNotFound, op,
				"no_collection_toml", "no collection.toml at %s", s.root)
		}
		return nil, types.WrapError(types.KindTransientIO, op, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &types.Error{Kind: types.KindValidation, Op: op,
			Detail: "toml_read_error",
			Msg:    fmt.Sprintf("collection.toml at %s does not parse", s.root),
			Err:    err}
	}
	return &m, nil
}

// Save writes the manifest atomically under the collection lock,
// stamping Updated and coercing non-hex tag colors to empty.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	return s.withLock(ctx, func() error {
		return s.saveLocked(m)
	})
}

// Mutate runs fn against the current manifest and saves the result, all
// under one lock hold, so read-modify-write callers cannot interleave.
func (s *Store) Mutate(ctx context.Context, fn func(m *Manifest) error) error {
	return s.withLock(ctx, func() error {
		m, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		return s.saveLocked(m)
	})
}

// WriteSnapshot replaces the manifest's tag definition and group
// sections wholesale. The rest of the manifest is untouched.
func (s *Store) WriteSnapshot(ctx context.Context, tags []TagDefinition, groups []GroupEntry) error {
	return s.Mutate(ctx, func(m *Manifest) error {
		m.TagDefinitions = tags
		m.Groups = groups
		return nil
	})
}

// UpsertArtifactEntry adds an [[artifacts]] entry, replacing any
// existing entry with the same type and name.
func (s *Store) UpsertArtifactEntry(ctx context.Context, e ArtifactEntry) error {
	if e.Added.IsZero() {
		e.Added = time.Now().UTC()
	}
	return s.Mutate(ctx, func(m *Manifest) error {
		for i := range m.Artifacts {
			if m.Artifacts[i].Type == e.Type && m.Artifacts[i].Name == e.Name {
				m.Artifacts[i] = e
				return nil
			}
		}
		m.Artifacts = append(m.Artifacts, e)
		return nil
	})
}

// RemoveArtifactEntry drops the [[artifacts]] entry with the given type
// and name.
func (s *Store) RemoveArtifactEntry(ctx context.Context, t types.ArtifactType, name string) error {
	return s.Mutate(ctx, func(m *Manifest) error {
		for i := range m.Artifacts {
			if m.Artifacts[i].Type == string(t) && m.Artifacts[i].Name == name {
				m.Artifacts = append(m.Artifacts[:i], m.Artifacts[i+1:]...)
				return nil
			}
		}
		return types.NewDetailError(types.KindNotFound, "collection.RemoveArtifactEntry",
			"unknown_artifact", "artifact %s not in collection manifest", types.MakeKey(t, name))
	})
}

// ArtifactKeys returns the manifest's artifact keys as a set, the shape
// the discovery pre-scan wants.
func (s *Store) ArtifactKeys(ctx context.Context) (map[string]bool, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(m.Artifacts))
	for i := range m.Artifacts {
		keys[m.Artifacts[i].Key()] = true
	}
	return keys, nil
}

func (s *Store) saveLocked(m *Manifest) error {
	const op = "collection.Save"
	m.Collection.Updated = time.Now().UTC()
	if m.Collection.Created.IsZero() {
		m.Collection.Created = m.Collection.Updated
	}
	for i := range m.TagDefinitions {
		m.TagDefinitions[i].Color = NormalizeColor(m.TagDefinitions[i].Color)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := utils.AtomicWriteFile(s.ManifestPath(), buf.Bytes(), 0644); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	return nil
}

// locks holds one mutex per collection root: goroutines in this process
// serialize here, processes serialize on the flock below.
var locks = struct {
	sync.Mutex
	m map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

func lockFor(root string) *sync.Mutex {
	locks.Lock()
	defer locks.Unlock()
	if mu, ok := locks.m[root]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	locks.m[root] = mu
	return mu
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	const op = "collection.lock"
	mu := lockFor(s.root)
	mu.Lock()
	defer mu.Unlock()

	if err := utils.EnsureDir(s.root); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	fl := flock.New(filepath.Join(s.root, ".collection.lock"))
	lockCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, lockTimeout)
		defer cancel()
	}
	locked, err := fl.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if !locked {
		return types.NewDetailError(types.KindTransientIO, op, "lock_contention",
			"collection %s is locked by another process", s.root)
	}
	defer fl.Unlock()

	return fn()
}

// hexColorRe accepts #RGB and #RRGGBB.
var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// NormalizeColor returns c when it is a hex color and empty otherwise.
func NormalizeColor(c string) string {
	if hexColorRe.MatchString(c) {
		return c
	}
	return ""
}
