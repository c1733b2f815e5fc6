package deploy

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/hashing"
	"github.com/skillmeat/skillmeat/internal/resolver"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
)

// defaultWorkers bounds the staging fan-out when the caller does not.
const defaultWorkers = 4

// Status classifies one artifact's outcome within a deployment batch.
type Status string

const (
	StatusDeployed Status = "deployed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// ArtifactResult is the per-artifact outcome of a batch.
type ArtifactResult struct {
	ArtifactUUID string `json:"artifact_uuid"`
	Key          string `json:"key,omitempty"`
	Target       string `json:"target,omitempty"`
	Status       Status `json:"status"`
	Detail       string `json:"detail,omitempty"`
}

// Result aggregates a deployment batch. Artifacts preserves input order.
type Result struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Artifacts []ArtifactResult `json:"artifacts"`
}

// Options configure one deployment batch.
type Options struct {
	ProjectPath   string
	Profile       *types.DeploymentProfile
	CollectionID  string
	CollectionSHA string
	Overwrite     bool
	DryRun        bool
	Vars          map[string]string
	Workers       int
}

// Engine materializes collection artifacts into a project directory.
// Per-artifact failures are captured in the result and never abort the
// rest of the batch; only whole-operation problems (bad variables,
// unwritable project, cancellation) surface as errors.
type Engine struct {
	store storage.Storage
	col   *collection.Store
}

// New returns an engine that reads artifact content from col and
// records versions through store.
func New(store storage.Storage, col *collection.Store) *Engine {
	return &Engine{store: store, col: col}
}

// plan carries one artifact through the batch. A zero status means the
// artifact is still in flight; staging and commit leave it deployed,
// skipped, or failed.
type plan struct {
	uuid    string
	key     string
	art     *types.Artifact
	version string
	source  string
	target  string
	exists  bool
	isDir   bool
	staged  string
	status  Status
	detail  string
}

func (p *plan) fail(detail string) *plan {
	p.status = StatusFailed
	p.detail = detail
	return p
}

func (p *plan) skip(detail string) *plan {
	p.status = StatusSkipped
	p.detail = detail
	return p
}

// DeploySet resolves a deployment set and deploys its artifacts in
// resolution order.
func (e *Engine) DeploySet(ctx context.Context, setID int64, opts Options) (*Result, error) {
	uuids, err := resolver.ResolveSet(ctx, e.store, setID, 0)
	if err != nil {
		return nil, err
	}
	return e.DeployArtifacts(ctx, uuids, opts)
}

// DeployArtifacts deploys the given artifacts, in order, into the
// project directory under opts.Profile's root.
func (e *Engine) DeployArtifacts(ctx context.Context, uuids []string, opts Options) (*Result, error) {
	const op = "deploy.DeployArtifacts"
	if opts.Profile == nil {
		return nil, types.NewDetailError(types.KindValidation, op,
			"missing_profile", "a deployment profile is required")
	}
	vars, err := prepareVars(opts.Vars)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	if err := utils.EnsureDir(opts.ProjectPath); err != nil {
		return nil, types.NewDetailError(types.KindValidation, op,
			"project_not_writable", "cannot create project directory %s: %v", opts.ProjectPath, err)
	}
	probe, err := os.CreateTemp(opts.ProjectPath, ".skillmeat-probe-")
	if err != nil {
		return nil, types.NewDetailError(types.KindValidation, op,
			"project_not_writable", "project %s is not writable: %v", opts.ProjectPath, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	plans := make([]*plan, 0, len(uuids))
	for _, uuid := range uuids {
		plans = append(plans, e.planOne(ctx, uuid, opts))
	}

	if opts.DryRun {
		for _, p := range plans {
			if p.status == StatusFailed {
				continue
			}
			switch {
			case p.status == StatusSkipped:
				p.detail = "would skip: " + p.detail
			case p.exists:
				p.skip("would overwrite")
			default:
				p.skip("would create")
			}
		}
		return summarize(plans), nil
	}

	// Staging lives inside the project so the commit renames below never
	// cross a filesystem boundary.
	staging, err := os.MkdirTemp(opts.ProjectPath, ".skillmeat-staging-")
	if err != nil {
		return nil, types.WrapError(types.KindTransientIO, op, err)
	}
	defer os.RemoveAll(staging)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range plans {
		if p.status != "" {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(staging, strconv.Itoa(i))
			if err := e.stage(p, dst, vars); err != nil {
				p.fail("staging failed: " + err.Error())
				return nil
			}
			p.staged = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		abandonPending(plans)
		return summarize(plans), types.WrapError(types.KindTransientIO, op, err)
	}

	// Commit sequentially in input order. Cancellation between artifacts
	// keeps everything already committed and abandons the rest.
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			abandonPending(plans)
			return summarize(plans), types.WrapError(types.KindTransientIO, op, err)
		}
		if p.status != "" {
			continue
		}
		if err := e.commit(p); err != nil {
			p.fail("commit failed: " + err.Error())
			continue
		}
		p.status = StatusDeployed
		if err := e.record(ctx, p, opts); err != nil {
			debug.Errorf("deploy telemetry for %s: %v", p.key, err)
		}
	}

	res := summarize(plans)
	debug.Logf("deployed %d artifacts to %s (%d skipped, %d failed)",
		res.Succeeded, opts.ProjectPath, res.Skipped, res.Failed)
	return res, nil
}

// planOne resolves one artifact to a source and target path and applies
// the overwrite policy. Any problem marks the plan failed rather than
// aborting the batch.
func (e *Engine) planOne(ctx context.Context, uuid string, opts Options) *plan {
	p := &plan{uuid: uuid}
	art, err := e.store.GetArtifact(ctx, uuid)
	if err != nil {
		return p.fail(err.Error())
	}
	p.art = art
	p.key = art.Key()

	if !opts.Profile.Supports(art.Type) {
		return p.fail("profile " + opts.Profile.ProfileID + " does not deploy " + string(art.Type) + " artifacts")
	}

	ca, err := e.store.GetCollectionArtifact(ctx, opts.CollectionID, uuid)
	if err != nil {
		return p.fail(err.Error())
	}
	p.version = ca.Version
	p.source = filepath.Join(e.col.Root(), filepath.FromSlash(ca.Path))
	info, err := os.Stat(p.source)
	if err != nil {
		return p.fail("source missing from collection: " + ca.Path)
	}
	p.isDir = info.IsDir()

	target, err := TargetPath(opts.ProjectPath, opts.Profile, art.Type, ca.Path)
	if err != nil {
		return p.fail(err.Error())
	}
	p.target = target
	if _, err := os.Lstat(target); err == nil {
		p.exists = true
		if !opts.Overwrite {
			return p.skip("target exists")
		}
	}
	return p
}

// stage renders the artifact into dst. File artifacts stage as a single
// file, directory artifacts as a tree mirroring the source layout.
func (e *Engine) stage(p *plan, dst string, vars map[string]string) error {
	if !p.isDir {
		return stageFile(p.source, dst, vars)
	}
	return filepath.WalkDir(p.source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(p.source, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && hashing.ExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return utils.EnsureDir(filepath.Join(dst, rel))
		}
		if !d.Type().IsRegular() || hashing.Excluded(d.Name()) {
			return nil
		}
		return stageFile(path, filepath.Join(dst, rel), vars)
	})
}

func stageFile(src, dst string, vars map[string]string) error {
	data, err := os.ReadFile(src) // #nosec G304 - source path comes from the collection store
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return os.WriteFile(dst, renderVars(data, vars), 0644)
}

// commit promotes the staged rendering into place.
func (e *Engine) commit(p *plan) error {
	if p.isDir {
		return utils.ReplaceDir(p.staged, p.target)
	}
	if err := utils.EnsureDir(filepath.Dir(p.target)); err != nil {
		return err
	}
	return os.Rename(p.staged, p.target)
}

// record writes the deployment's version row and tracker entry. Errors
// here never fail the artifact; the files are already in place.
func (e *Engine) record(ctx context.Context, p *plan, opts Options) error {
	const op = "deploy.Record"
	hash, err := hashing.HashPath(p.target)
	if err != nil {
		return types.WrapError(types.KindTelemetryFailure, op, err)
	}

	// Append is idempotent: a hash the registry has already seen returns
	// the existing row, so redeploys never grow the version chain.
	ver, err := e.store.AppendVersion(ctx, &types.ArtifactVersion{
		ArtifactUUID: p.art.UUID,
		ContentHash:  hash,
		ChangeOrigin: types.OriginDeployment,
	})
	if err != nil {
		ver = nil
		debug.Warnf("version append for %s: %v", p.key, err)
	}

	rec := types.DeploymentRecord{
		ArtifactName:        p.art.Name,
		ArtifactType:        string(p.art.Type),
		ArtifactUUID:        p.art.UUID,
		ArtifactPath:        relTo(opts.ProjectPath, p.target),
		FromCollection:      opts.CollectionID,
		DeployedAt:          time.Now().UTC(),
		CollectionSHA:       opts.CollectionSHA,
		ContentHash:         hash,
		DeploymentProfileID: opts.Profile.ProfileID,
		Platform:            string(opts.Profile.Platform),
		ProfileRootDir:      opts.Profile.RootDir,
	}
	if ver != nil {
		rec.MergeBaseSnapshot = ver.ParentHash
		rec.VersionLineage = ver.Lineage
	}
	tracker := NewTracker(opts.ProjectPath, opts.Profile.RootDir)
	if err := tracker.Append(ctx, rec); err != nil {
		return types.WrapError(types.KindTelemetryFailure, op, err)
	}

	if p.version != "" && p.art.DeployedVersion != p.version {
		p.art.DeployedVersion = p.version
		if err := e.store.UpsertArtifact(ctx, p.art); err != nil {
			debug.Warnf("stamping deployed version for %s: %v", p.key, err)
		}
	}
	return nil
}

// abandonPending marks still-in-flight plans skipped after cancellation.
func abandonPending(plans []*plan) {
	for _, p := range plans {
		if p.status == "" {
			p.skip("canceled")
		}
	}
}

func summarize(plans []*plan) *Result {
	res := &Result{Artifacts: make([]ArtifactResult, 0, len(plans))}
	for _, p := range plans {
		switch p.status {
		case StatusDeployed:
			res.Succeeded++
		case StatusFailed:
			res.Failed++
		case StatusSkipped:
			res.Skipped++
		}
		res.Artifacts = append(res.Artifacts, ArtifactResult{
			ArtifactUUID: p.uuid,
			Key:          p.key,
			Target:       p.target,
			Status:       p.status,
			Detail:       p.detail,
		})
	}
	return res
}

func relTo(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
