package deploy

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
)

// TrackerName is the ledger file kept inside each profile root.
const TrackerName = ".skillmeat-deployed.toml"

const (
	trackerLockTimeout = 3 * time.Second
	trackerLockRetry   = 100 * time.Millisecond
)

type trackerFile struct {
	Deployed []types.DeploymentRecord `toml:"deployed"`
}

// Tracker is the deployment ledger for one profile root inside one
// project. Mutations land atomically; a missing or malformed file reads
// as an empty ledger.
type Tracker struct {
	path string
}

// NewTracker returns the tracker for <projectPath>/<rootDir>.
func NewTracker(projectPath, rootDir string) *Tracker {
	return &Tracker{path: filepath.Join(projectPath, rootDir, TrackerName)}
}

// Path returns the ledger file path.
func (t *Tracker) Path() string {
	return t.path
}

// Read returns every record, oldest first. Records written by earlier
// versions are back-filled in memory (profile id, platform, root dir);
// the next mutation persists the back-fill.
func (t *Tracker) Read(ctx context.Context) ([]types.DeploymentRecord, error) {
	return t.read()
}

func (t *Tracker) read() ([]types.DeploymentRecord, error) {
	data, err := os.ReadFile(t.path) // #nosec G304 - tracker path is derived from the project root
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.WrapError(types.KindTransientIO, "deploy.Tracker.Read", err)
	}
	var f trackerFile
	if err := toml.Unmarshal(data, &f); err != nil {
		debug.Warnf("tracker %s is malformed, reading as empty: %v", t.path, err)
		return nil, nil
	}
	for i := range f.Deployed {
		t.backfill(&f.Deployed[i])
	}
	return f.Deployed, nil
}

// Append records a deployment. A record with the same artifact type and
// name replaces the previous one, so the ledger stays one row per
// deployed artifact.
func (t *Tracker) Append(ctx context.Context, rec types.DeploymentRecord) error {
	return t.withLock(ctx, func() error {
		records, err := t.read()
		if err != nil {
			return err
		}
		if rec.DeployedAt.IsZero() {
			rec.DeployedAt = time.Now().UTC()
		}
		replaced := false
		for i := range records {
			if records[i].ArtifactType == rec.ArtifactType && records[i].ArtifactName == rec.ArtifactName {
				records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			records = append(records, rec)
		}
		return t.write(records)
	})
}

// Remove drops the record for an artifact. Removing an absent record is
// a no-op so undeploys stay idempotent.
func (t *Tracker) Remove(ctx context.Context, artifactType, name string) error {
	return t.withLock(ctx, func() error {
		records, err := t.read()
		if err != nil {
			return err
		}
		kept := records[:0]
		for _, rec := range records {
			if rec.ArtifactType == artifactType && rec.ArtifactName == name {
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == len(records) {
			return nil
		}
		return t.write(kept)
	})
}

func (t *Tracker) write(records []types.DeploymentRecord) error {
	const op = "deploy.Tracker.Write"
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(trackerFile{Deployed: records}); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := utils.AtomicWriteFile(t.path, buf.Bytes(), 0644); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	return nil
}

// backfill fills fields that pre-profile ledgers never wrote, without
// touching fields that are present: the root dir comes from the record's
// own path when it starts with a known platform root and from the
// ledger's parent directory otherwise, the platform and profile id
// follow from the root dir.
func (t *Tracker) backfill(rec *types.DeploymentRecord) {
	root := ""
	first, _, _ := strings.Cut(filepath.ToSlash(rec.ArtifactPath), "/")
	for _, known := range types.KnownProfileRoots {
		if first == known {
			root = known
			break
		}
	}
	if root == "" {
		root = filepath.Base(filepath.Dir(t.path))
	}
	if rec.ProfileRootDir == "" {
		rec.ProfileRootDir = root
	}
	if rec.Platform == "" {
		rec.Platform = string(types.PlatformForRootDir(rec.ProfileRootDir))
	}
	if rec.DeploymentProfileID == "" {
		rec.DeploymentProfileID = strings.TrimPrefix(rec.ProfileRootDir, ".")
	}
}

// trackerLocks serializes goroutines per ledger file; the flock below
// serializes processes.
var trackerLocks = struct {
	sync.Mutex
	m map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

func trackerLockFor(path string) *sync.Mutex {
	trackerLocks.Lock()
	defer trackerLocks.Unlock()
	if mu, ok := trackerLocks.m[path]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	trackerLocks.m[path] = mu
	return mu
}

func (t *Tracker) withLock(ctx context.Context, fn func() error) error {
	const op = "deploy.Tracker.Lock"
	mu := trackerLockFor(t.path)
	mu.Lock()
	defer mu.Unlock()

	if err := utils.EnsureDir(filepath.Dir(t.path)); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	fl := flock.New(t.path + ".lock")
	lockCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, trackerLockTimeout)
		defer cancel()
	}
	locked, err := fl.TryLockContext(lockCtx, trackerLockRetry)
	if err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if !locked {
		return types.NewDetailError(types.KindTransientIO, op, "lock_contention",
			"tracker %s is locked by another process", t.path)
	}
	defer fl.Unlock()

	return fn()
}
