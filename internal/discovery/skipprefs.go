package discovery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
)

// skipPrefsName is the per-project skip preferences file, kept under the
// project's .claude directory.
const skipPrefsName = ".skillmeat_skip_prefs.toml"

const skipPrefsVersion = "1.0"

// SkipPref marks one artifact the user never wants offered for import.
type SkipPref struct {
	ArtifactKey string `toml:"artifact_key" json:"artifact_key"`
	SkipReason  string `toml:"skip_reason,omitempty" json:"skip_reason,omitempty"`
	AddedDate   string `toml:"added_date" json:"added_date"`
}

type skipPrefsFile struct {
	Metadata skipPrefsMetadata `toml:"metadata"`
	Skips    []SkipPref        `toml:"skips"`
}

type skipPrefsMetadata struct {
	Version     string `toml:"version"`
	LastUpdated string `toml:"last_updated"`
}

// SkipPrefsPath returns the skip preferences file location for a project.
func SkipPrefsPath(projectPath string) string {
	return filepath.Join(projectPath, projectSubdir, skipPrefsName)
}

// LoadSkipPrefs reads a project's skip preferences. A missing file loads
// as empty. A file with duplicate artifact keys, or one that does not
// parse, also loads as empty with a warning so a corrupt file never
// blocks discovery.
func LoadSkipPrefs(projectPath string) ([]SkipPref, error) {
	path := SkipPrefsPath(projectPath)
	data, err := os.ReadFile(path) // #nosec G304 - path derived from project root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skip prefs: %w", err)
	}

	var file skipPrefsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		debug.Warnf("skip prefs %s does not parse, treating as empty: %v", path, err)
		return nil, nil
	}

	seen := make(map[string]bool, len(file.Skips))
	for _, s := range file.Skips {
		if seen[s.ArtifactKey] {
			debug.Warnf("skip prefs %s has duplicate key %q, treating file as empty", path, s.ArtifactKey)
			return nil, nil
		}
		seen[s.ArtifactKey] = true
	}
	return file.Skips, nil
}

// SaveSkipPrefs atomically replaces a project's skip preferences under
// the project's skip-prefs lock.
func SaveSkipPrefs(ctx context.Context, projectPath string, skips []SkipPref) error {
	path := SkipPrefsPath(projectPath)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	unlock, err := acquireSkipPrefsLock(ctx, projectPath)
	if err != nil {
		return err
	}
	defer unlock()

	file := skipPrefsFile{
		Metadata: skipPrefsMetadata{
			Version:     skipPrefsVersion,
			LastUpdated: time.Now().Format(time.RFC3339),
		},
		Skips: skips,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("encoding skip prefs: %w", err)
	}
	if err := utils.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return types.WrapError(types.KindTransientIO, "discovery.SaveSkipPrefs", err)
	}
	return nil
}

// AddSkipPref records a new skip for "<type>:<name>". Re-adding an
// existing key is a conflict.
func AddSkipPref(ctx context.Context, projectPath, artifactKey, reason string) error {
	const op = "discovery.AddSkipPref"
	if _, _, err := types.ParseKey(artifactKey); err != nil {
		return err
	}
	skips, err := LoadSkipPrefs(projectPath)
	if err != nil {
		return err
	}
	for _, s := range skips {
		if s.ArtifactKey == artifactKey {
			return types.NewDetailError(types.KindConflict, op, "duplicate_skip",
				"%s is already skipped", artifactKey)
		}
	}
	skips = append(skips, SkipPref{
		ArtifactKey: artifactKey,
		SkipReason:  reason,
		AddedDate:   time.Now().Format("2006-01-02"),
	})
	return SaveSkipPrefs(ctx, projectPath, skips)
}

// RemoveSkipPref deletes a skip by key.
func RemoveSkipPref(ctx context.Context, projectPath, artifactKey string) error {
	const op = "discovery.RemoveSkipPref"
	skips, err := LoadSkipPrefs(projectPath)
	if err != nil {
		return err
	}
	kept := skips[:0]
	for _, s := range skips {
		if s.ArtifactKey != artifactKey {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(skips) {
		return types.NewDetailError(types.KindNotFound, op, "unknown_skip",
			"%s is not skipped", artifactKey)
	}
	return SaveSkipPrefs(ctx, projectPath, kept)
}

// FilterSkipped drops candidates whose keys appear in the skip list.
func FilterSkipped(candidates []types.DiscoveredArtifact, skips []SkipPref) []types.DiscoveredArtifact {
	if len(skips) == 0 {
		return candidates
	}
	skipped := make(map[string]bool, len(skips))
	for _, s := range skips {
		skipped[s.ArtifactKey] = true
	}
	kept := make([]types.DiscoveredArtifact, 0, len(candidates))
	for _, c := range candidates {
		if skipped[c.Key()] {
			debug.Logf("discovery: %s filtered by skip prefs", c.Key())
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// acquireSkipPrefsLock serializes skip-prefs writers across processes.
// Lock acquisition retries until the context deadline; contention past
// that surfaces as transient_io.
func acquireSkipPrefsLock(ctx context.Context, projectPath string) (func(), error) {
	lockPath := filepath.Join(projectPath, projectSubdir, ".skip_prefs.lock")
	lock := flock.New(lockPath)

	lockCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
	}
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return nil, types.WrapError(types.KindTransientIO, "discovery.skipPrefsLock",
			fmt.Errorf("acquiring skip prefs lock: %w", err))
	}
	if !locked {
		return nil, types.NewDetailError(types.KindTransientIO, "discovery.skipPrefsLock",
			"lock_contention", "another process holds the skip prefs lock")
	}
	return func() { _ = lock.Unlock() }, nil
}
