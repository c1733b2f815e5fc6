package deploy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/hashing"
	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
)

type deployEnv struct {
	ctx     context.Context
	store   *sqlite.SQLiteStorage
	col     *collection.Store
	engine  *Engine
	project string
}

func newDeployEnv(t *testing.T) *deployEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.UpsertCollection(ctx, &types.Collection{ID: "main", Name: "Main"}); err != nil {
		t.Fatalf("failed to seed collection: %v", err)
	}
	col := collection.NewStore(t.TempDir())
	if _, err := col.Init(ctx, "Main"); err != nil {
		t.Fatalf("failed to init collection: %v", err)
	}
	return &deployEnv{
		ctx:     ctx,
		store:   store,
		col:     col,
		engine:  New(store, col),
		project: t.TempDir(),
	}
}

func (e *deployEnv) options() Options {
	return Options{
		ProjectPath:  e.project,
		Profile:      claudeProfile(),
		CollectionID: "main",
		Vars:         map[string]string{"PROJECT_NAME": "meatgrinder"},
	}
}

// seedCommand registers a single-file command artifact and writes its
// content into the collection.
func (e *deployEnv) seedCommand(t *testing.T, name, content string) *types.Artifact {
	t.Helper()
	a := &types.Artifact{Type: types.TypeCommand, Name: name}
	if err := e.store.UpsertArtifact(e.ctx, a); err != nil {
		t.Fatalf("UpsertArtifact(%s): %v", name, err)
	}
	rel := "artifacts/commands/" + name + ".md"
	e.writeCollectionFile(t, rel, content)
	err := e.store.UpsertCollectionArtifact(e.ctx, &types.CollectionArtifact{
		CollectionID: "main", ArtifactUUID: a.UUID, Path: rel,
	})
	if err != nil {
		t.Fatalf("UpsertCollectionArtifact(%s): %v", name, err)
	}
	return a
}

// seedSkill registers a directory skill artifact with a manifest and one
// nested reference file.
func (e *deployEnv) seedSkill(t *testing.T, name string) *types.Artifact {
	t.Helper()
	a := &types.Artifact{Type: types.TypeSkill, Name: name}
	if err := e.store.UpsertArtifact(e.ctx, a); err != nil {
		t.Fatalf("UpsertArtifact(%s): %v", name, err)
	}
	rel := "artifacts/skills/" + name
	e.writeCollectionFile(t, rel+"/SKILL.md", "# "+name+" for {{PROJECT_NAME}}\n")
	e.writeCollectionFile(t, rel+"/references/notes.md", "notes\n")
	err := e.store.UpsertCollectionArtifact(e.ctx, &types.CollectionArtifact{
		CollectionID: "main", ArtifactUUID: a.UUID, Path: rel,
	})
	if err != nil {
		t.Fatalf("UpsertCollectionArtifact(%s): %v", name, err)
	}
	return a
}

func (e *deployEnv) writeCollectionFile(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(e.col.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDeployFileArtifact(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "deploy", "# Deploy {{PROJECT_NAME}}\nrun it\n")

	res, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, env.options())
	if err != nil {
		t.Fatalf("DeployArtifacts failed: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("result = %+v; want one deployed", res)
	}

	target := filepath.Join(env.project, ".claude", "commands", "deploy.md")
	if res.Artifacts[0].Target != target {
		t.Errorf("Target = %q; want %q", res.Artifacts[0].Target, target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("deployed file missing: %v", err)
	}
	if got, want := string(data), "# Deploy meatgrinder\nrun it\n"; got != want {
		t.Errorf("deployed content = %q; want %q", got, want)
	}

	// The staging directory must not survive the batch.
	leftovers, err := filepath.Glob(filepath.Join(env.project, ".skillmeat-staging-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("staging leftovers: %v", leftovers)
	}

	hash, err := hashing.HashPath(target)
	if err != nil {
		t.Fatalf("HashPath failed: %v", err)
	}
	ver, err := env.store.LatestVersion(env.ctx, a.UUID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if ver == nil {
		t.Fatal("no version row after deploy")
	}
	if ver.ContentHash != hash {
		t.Errorf("version hash = %q; want %q", ver.ContentHash, hash)
	}
	if ver.ChangeOrigin != types.OriginDeployment {
		t.Errorf("change origin = %q; want %q", ver.ChangeOrigin, types.OriginDeployment)
	}
	if !ver.IsRoot() {
		t.Errorf("first deploy version has parent %q; want a root", ver.ParentHash)
	}

	records, err := NewTracker(env.project, ".claude").Read(env.ctx)
	if err != nil {
		t.Fatalf("tracker read failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("tracker has %d records; want 1", len(records))
	}
	rec := records[0]
	if rec.ArtifactName != "deploy" || rec.ArtifactType != "command" {
		t.Errorf("tracker record names %s:%s; want command:deploy", rec.ArtifactType, rec.ArtifactName)
	}
	if rec.ArtifactPath != ".claude/commands/deploy.md" {
		t.Errorf("tracker path = %q; want %q", rec.ArtifactPath, ".claude/commands/deploy.md")
	}
	if rec.ContentHash != hash {
		t.Errorf("tracker hash = %q; want %q", rec.ContentHash, hash)
	}
	if rec.FromCollection != "main" || rec.DeploymentProfileID != "claude" {
		t.Errorf("tracker provenance = %q/%q; want main/claude", rec.FromCollection, rec.DeploymentProfileID)
	}
}

func TestDeployDirArtifact(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedSkill(t, "greeter")

	res, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, env.options())
	if err != nil {
		t.Fatalf("DeployArtifacts failed: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("result = %+v; want one deployed", res)
	}

	root := filepath.Join(env.project, ".claude", "skills", "greeter")
	manifest, err := os.ReadFile(filepath.Join(root, "SKILL.md"))
	if err != nil {
		t.Fatalf("deployed manifest missing: %v", err)
	}
	if got := string(manifest); !strings.Contains(got, "greeter for meatgrinder") {
		t.Errorf("manifest not rendered: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "references", "notes.md")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
}

func TestDeployOverwritePolicy(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "deploy", "fresh {{PROJECT_NAME}}\n")
	target := filepath.Join(env.project, ".claude", "commands", "deploy.md")

	if _, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, env.options()); err != nil {
		t.Fatalf("first deploy failed: %v", err)
	}
	if err := os.WriteFile(target, []byte("local edit\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, env.options())
	if err != nil {
		t.Fatalf("second deploy failed: %v", err)
	}
	if res.Skipped != 1 || res.Succeeded != 0 {
		t.Fatalf("result = %+v; want one skipped", res)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "local edit\n" {
		t.Errorf("skip rewrote the target: %q", data)
	}

	opts := env.options()
	opts.Overwrite = true
	res, err = env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, opts)
	if err != nil {
		t.Fatalf("overwrite deploy failed: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("result = %+v; want one deployed", res)
	}
	data, err = os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fresh meatgrinder\n" {
		t.Errorf("overwrite content = %q; want rendered source", data)
	}
}

func TestDeployDryRun(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "fresh", "one\n")
	b := env.seedCommand(t, "taken", "two\n")
	taken := filepath.Join(env.project, ".claude", "commands", "taken.md")
	if err := os.MkdirAll(filepath.Dir(taken), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(taken, []byte("already here\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := env.options()
	opts.DryRun = true
	res, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID, b.UUID}, opts)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if res.Skipped != 2 || res.Succeeded != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v; want everything skipped", res)
	}
	if res.Artifacts[0].Detail != "would create" {
		t.Errorf("fresh detail = %q; want %q", res.Artifacts[0].Detail, "would create")
	}
	if got := res.Artifacts[1].Detail; !strings.HasPrefix(got, "would skip") {
		t.Errorf("taken detail = %q; want a would-skip", got)
	}
	if res.Artifacts[0].Target == "" {
		t.Error("dry run omitted the computed target")
	}

	if _, err := os.Stat(filepath.Join(env.project, ".claude", "commands", "fresh.md")); !os.IsNotExist(err) {
		t.Error("dry run wrote a target file")
	}
	data, err := os.ReadFile(taken)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "already here\n" {
		t.Errorf("dry run touched an existing file: %q", data)
	}
	if _, err := os.Stat(NewTracker(env.project, ".claude").Path()); !os.IsNotExist(err) {
		t.Error("dry run wrote the tracker")
	}
	if ver, err := env.store.LatestVersion(env.ctx, a.UUID); err != nil || ver != nil {
		t.Errorf("dry run appended a version row: %v, %v", ver, err)
	}
}

func TestDeployBatchIsolatesFailures(t *testing.T) {
	env := newDeployEnv(t)
	good := env.seedCommand(t, "good", "ok\n")

	res, err := env.engine.DeployArtifacts(env.ctx, []string{"no-such-uuid", good.UUID}, env.options())
	if err != nil {
		t.Fatalf("DeployArtifacts failed: %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 1 {
		t.Fatalf("result = %+v; want one failed, one deployed", res)
	}
	if res.Artifacts[0].Status != StatusFailed {
		t.Errorf("first result = %+v; want failed", res.Artifacts[0])
	}
	if res.Artifacts[1].Status != StatusDeployed {
		t.Errorf("second result = %+v; want deployed", res.Artifacts[1])
	}
}

func TestDeployUnsupportedType(t *testing.T) {
	env := newDeployEnv(t)
	skill := env.seedSkill(t, "greeter")

	opts := env.options()
	opts.Profile.SupportedTypes = []types.ArtifactType{types.TypeCommand}
	res, err := env.engine.DeployArtifacts(env.ctx, []string{skill.UUID}, opts)
	if err != nil {
		t.Fatalf("DeployArtifacts failed: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("result = %+v; want one failed", res)
	}
	if got := res.Artifacts[0].Detail; !strings.Contains(got, "does not deploy") {
		t.Errorf("detail = %q; want an unsupported-type failure", got)
	}
}

func TestDeployRequiresProjectName(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "deploy", "x\n")

	opts := env.options()
	opts.Vars = nil
	_, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, opts)
	if !types.IsKind(err, types.KindValidation) {
		t.Fatalf("error = %v; want validation error", err)
	}
	if got := types.DetailOf(err); got != "missing_variable" {
		t.Errorf("detail = %q; want %q", got, "missing_variable")
	}
}

func TestDeployRequiresProfile(t *testing.T) {
	env := newDeployEnv(t)
	opts := env.options()
	opts.Profile = nil
	_, err := env.engine.DeployArtifacts(env.ctx, nil, opts)
	if !types.IsKind(err, types.KindValidation) {
		t.Fatalf("error = %v; want validation error", err)
	}
}

func TestRedeployKeepsVersionChainFlat(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "deploy", "same every time\n")

	opts := env.options()
	opts.Overwrite = true
	for i := 0; i < 3; i++ {
		if _, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, opts); err != nil {
			t.Fatalf("deploy %d failed: %v", i, err)
		}
	}

	chain, err := env.store.VersionChain(env.ctx, a.UUID)
	if err != nil {
		t.Fatalf("VersionChain failed: %v", err)
	}
	if len(chain) != 1 {
		t.Errorf("version chain has %d rows after redeploys; want 1", len(chain))
	}
}

func TestDeploySetResolvesMembers(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "alpha", "a\n")
	b := env.seedCommand(t, "beta", "b\n")

	ds, err := env.store.CreateSet(env.ctx, &types.DeploymentSet{Name: "starter"})
	if err != nil {
		t.Fatalf("CreateSet failed: %v", err)
	}
	for pos, uuid := range []string{b.UUID, a.UUID} {
		err := env.store.AddSetMember(env.ctx, &types.DeploymentSetMember{
			SetID: ds.ID, Position: pos, Kind: types.MemberArtifact, ArtifactUUID: uuid,
		})
		if err != nil {
			t.Fatalf("AddSetMember failed: %v", err)
		}
	}

	res, err := env.engine.DeploySet(env.ctx, ds.ID, env.options())
	if err != nil {
		t.Fatalf("DeploySet failed: %v", err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("result = %+v; want two deployed", res)
	}
	if res.Artifacts[0].ArtifactUUID != b.UUID || res.Artifacts[1].ArtifactUUID != a.UUID {
		t.Errorf("deploy order = %v; want set position order", []string{res.Artifacts[0].Key, res.Artifacts[1].Key})
	}

	if _, err := env.engine.DeploySet(env.ctx, 999, env.options()); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("DeploySet(999) error = %v; want not found", err)
	}
}

func TestDeployStampsDeployedVersion(t *testing.T) {
	env := newDeployEnv(t)
	a := env.seedCommand(t, "deploy", "x\n")
	err := env.store.UpsertCollectionArtifact(env.ctx, &types.CollectionArtifact{
		CollectionID: "main", ArtifactUUID: a.UUID,
		Path: "artifacts/commands/deploy.md", Version: "1.2.0",
	})
	if err != nil {
		t.Fatalf("UpsertCollectionArtifact failed: %v", err)
	}

	if _, err := env.engine.DeployArtifacts(env.ctx, []string{a.UUID}, env.options()); err != nil {
		t.Fatalf("DeployArtifacts failed: %v", err)
	}
	got, err := env.store.GetArtifact(env.ctx, a.UUID)
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if got.DeployedVersion != "1.2.0" {
		t.Errorf("DeployedVersion = %q; want %q", got.DeployedVersion, "1.2.0")
	}
}
