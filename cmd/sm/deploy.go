package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/config"
	"github.com/skillmeat/skillmeat/internal/deploy"
	"github.com/skillmeat/skillmeat/internal/gitinfo"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var deployCmd = &cobra.Command{
	Use:     "deploy [artifact-key...]",
	GroupID: "deploy",
	Short:   "Deploy collection artifacts into a project",
	Long: `Deploy artifacts from the collection into a project's platform root
(.claude/, .cursor/, ...). Content is staged next to its target and
promoted by rename, so a failed deploy never leaves half a file.
Existing targets are skipped unless --overwrite is set.

With artifact keys, deploys exactly those. With --set, resolves the
deployment set (sets may nest) and deploys its members in resolution
order. With neither, deploys the whole collection.

Examples:
  sm deploy                                # Everything, current project
  sm deploy skill:code-review              # One artifact
  sm deploy --set backend --project ~/api  # A set into another project
  sm deploy --profile cursor --overwrite   # Cursor layout, replace existing
  sm deploy --dry-run                      # Show the plan only
  sm deploy --var AUTHOR="Team Infra"      # Template variable`,
	Run: func(cmd *cobra.Command, args []string) {
		setName, _ := cmd.Flags().GetString("set")
		profileID, _ := cmd.Flags().GetString("profile")
		projectPath, _ := cmd.Flags().GetString("project")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		varFlags, _ := cmd.Flags().GetStringArray("var")
		workers, _ := cmd.Flags().GetInt("workers")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if setName != "" && len(args) > 0 {
			FatalErrorRespectJSON("pass artifact keys or --set, not both")
		}
		if workers == 0 {
			workers = config.GetInt("deploy.workers")
		}

		projectAbs, err := filepath.Abs(projectPath)
		if err != nil {
			FatalErrorRespectJSON("resolving project path: %v", err)
		}

		opts := deploy.Options{
			ProjectPath:   projectAbs,
			Profile:       lookupProfile(profileID),
			CollectionID:  mainCollectionID,
			CollectionSHA: gitinfo.HeadSHA(col.Root()),
			Overwrite:     overwrite || config.GetBool("deploy.overwrite"),
			DryRun:        dryRun,
			Vars:          parseVarFlags(varFlags, projectAbs),
			Workers:       workers,
		}

		engine := deploy.New(store, col)
		var result *deploy.Result
		if setName != "" {
			set, err := store.GetSetByName(rootCtx, setName)
			if err != nil {
				FatalErrorRespectJSON("unknown deployment set %q", setName)
			}
			result, err = engine.DeploySet(rootCtx, set.ID, opts)
			if err != nil {
				FatalErrorRespectJSON("deploying set %q: %v", setName, err)
			}
		} else {
			uuids := deployTargets(args)
			result, err = engine.DeployArtifacts(rootCtx, uuids, opts)
			if err != nil {
				FatalErrorRespectJSON("deploying: %v", err)
			}
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		printDeployResult(result, dryRun)
	},
}

// lookupProfile resolves a profile id against the registry first and the
// builtin defaults second.
func lookupProfile(profileID string) *types.DeploymentProfile {
	p, err := store.GetProfile(rootCtx, types.SentinelProjectID, profileID)
	if err == nil {
		return p
	}
	if !types.IsKind(err, types.KindNotFound) {
		FatalErrorRespectJSON("loading profile %q: %v", profileID, err)
	}
	if p := deploy.DefaultProfile(types.SentinelProjectID, profileID); p != nil {
		return p
	}
	known := []string{}
	for _, dp := range deploy.DefaultProfiles(types.SentinelProjectID) {
		known = append(known, dp.ProfileID)
	}
	FatalErrorRespectJSON("unknown profile %q (builtin: %s)", profileID, strings.Join(known, ", "))
	return nil
}

// deployTargets maps artifact-key arguments to UUIDs; with no arguments
// it returns every artifact pinned to the collection.
func deployTargets(args []string) []string {
	if len(args) == 0 {
		cas, err := store.ListCollectionArtifacts(rootCtx, mainCollectionID)
		if err != nil {
			FatalErrorRespectJSON("listing collection: %v", err)
		}
		if len(cas) == 0 {
			FatalErrorRespectJSON("the collection is empty; import something first")
		}
		uuids := make([]string, len(cas))
		for i, ca := range cas {
			uuids[i] = ca.ArtifactUUID
		}
		return uuids
	}

	uuids := make([]string, 0, len(args))
	for _, key := range args {
		t, name, err := types.ParseKey(key)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		a, err := store.GetArtifactByKey(rootCtx, t, name)
		if err != nil {
			FatalErrorRespectJSON("no artifact %q in the registry", key)
		}
		uuids = append(uuids, a.UUID)
	}
	return uuids
}

// parseVarFlags turns --var K=V pairs into the substitution map and
// defaults PROJECT_NAME to the project directory's name.
func parseVarFlags(flags []string, projectAbs string) map[string]string {
	vars := make(map[string]string, len(flags)+1)
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			FatalErrorRespectJSON("--var wants KEY=VALUE, got %q", f)
		}
		vars[k] = v
	}
	if vars["PROJECT_NAME"] == "" {
		vars["PROJECT_NAME"] = filepath.Base(projectAbs)
	}
	return vars
}

func printDeployResult(result *deploy.Result, dryRun bool) {
	for _, ar := range result.Artifacts {
		switch ar.Status {
		case deploy.StatusDeployed:
			fmt.Printf("%s %s -> %s\n", ui.RenderPass("✓"), ar.Key, ar.Target)
		case deploy.StatusSkipped:
			fmt.Printf("%s %s skipped (%s)\n", ui.RenderMuted("="), ar.Key, ar.Detail)
		case deploy.StatusFailed:
			fmt.Printf("%s %s: %s\n", ui.RenderFail("✗"), ar.Key, ar.Detail)
		}
	}

	summary := fmt.Sprintf("Deployed %d, skipped %d, failed %d",
		result.Succeeded, result.Skipped, result.Failed)
	if dryRun {
		summary += " (dry run)"
	}
	if result.Failed > 0 {
		fmt.Println(ui.RenderWarn(summary))
		return
	}
	fmt.Println(summary)
}

func init() {
	deployCmd.Flags().String("set", "", "Deploy a named deployment set")
	deployCmd.Flags().String("profile", "claude", "Deployment profile (claude, codex, gemini, cursor, or custom)")
	deployCmd.Flags().String("project", ".", "Project directory to deploy into")
	deployCmd.Flags().Bool("overwrite", false, "Replace targets that already exist")
	deployCmd.Flags().Bool("dry-run", false, "Plan without writing anything")
	deployCmd.Flags().StringArray("var", nil, "Template variable KEY=VALUE (repeatable)")
	deployCmd.Flags().Int("workers", 0, "Parallel staging workers (default from config)")
	rootCmd.AddCommand(deployCmd)
}
