package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/deploy"
	"github.com/skillmeat/skillmeat/internal/hashing"
	"github.com/skillmeat/skillmeat/internal/queries"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "deploy",
	Short:   "Summarize the collection and the current project's deployments",
	Long: `Summarize the collection (artifact counts, tags, groups, sets) and
read the current project's deployment ledger. Deployed files whose
content no longer matches the recorded hash are flagged as modified.

Examples:
  sm status
  sm status --project ~/src/api
  sm status --profile cursor`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		projectPath, _ := cmd.Flags().GetString("project")
		profileID, _ := cmd.Flags().GetString("profile")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		summary, err := queries.Status(rootCtx, store, mainCollectionID)
		if err != nil {
			FatalErrorRespectJSON("reading collection status: %v", err)
		}

		projectAbs, err := filepath.Abs(projectPath)
		if err != nil {
			FatalErrorRespectJSON("resolving project path: %v", err)
		}
		profile := lookupProfile(profileID)
		tracker := deploy.NewTracker(projectAbs, profile.RootDir)
		records, err := tracker.Read(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("reading deployment ledger: %v", err)
		}

		modified := markModifiedRecords(projectAbs, records)

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"collection": summary,
				"project":    projectAbs,
				"deployed":   records,
			})
			return
		}

		printCollectionSummary(summary)
		fmt.Println()

		rows := make([]ui.DeployedRow, len(records))
		for i, rec := range records {
			rows[i] = ui.DeployedRow{
				Key:        types.MakeKey(types.ArtifactType(rec.ArtifactType), rec.ArtifactName),
				Path:       rec.ArtifactPath,
				Profile:    rec.DeploymentProfileID,
				DeployedAt: rec.DeployedAt.Format("2006-01-02 15:04"),
				Modified:   rec.LocalModifications,
			}
		}
		fmt.Println(ui.RenderDeployedTable(projectAbs, rows, ui.GetWidth()))
		if modified > 0 {
			fmt.Println(ui.RenderWarn(fmt.Sprintf("%d deployed artifact(s) modified locally", modified)))
		}
	},
}

// markModifiedRecords rehashes each deployed target and flags records
// whose content drifted from the recorded hash. Missing targets count as
// modified too.
func markModifiedRecords(projectAbs string, records []types.DeploymentRecord) int {
	modified := 0
	for i := range records {
		rec := &records[i]
		if rec.ContentHash == "" {
			continue
		}
		target := filepath.Join(projectAbs, filepath.FromSlash(rec.ArtifactPath))
		hash, err := hashing.HashPath(target)
		if err != nil || hash != rec.ContentHash {
			rec.LocalModifications = true
			modified++
		}
	}
	return modified
}

func printCollectionSummary(s *queries.Summary) {
	fmt.Println(ui.RenderAccent("Collection"))
	byType := make([]string, 0, len(s.ByType))
	for t, n := range s.ByType {
		byType = append(byType, fmt.Sprintf("%d %s(s)", n, t))
	}
	sort.Strings(byType)
	parts := fmt.Sprintf("  %d artifact(s)", s.Artifacts)
	if len(byType) > 0 {
		parts += " (" + strings.Join(byType, ", ") + ")"
	}
	fmt.Println(parts)
	fmt.Printf("  %d tag(s), %d group(s), %d set(s)\n", s.Tags, s.Groups, s.Sets)
	line := fmt.Sprintf("  %d deployed", s.Deployed)
	if s.Outdated > 0 {
		line += ", " + ui.RenderWarn(fmt.Sprintf("%d outdated", s.Outdated))
	}
	if s.LocalModified > 0 {
		line += ", " + ui.RenderWarn(fmt.Sprintf("%d locally modified", s.LocalModified))
	}
	fmt.Println(line)
}

func init() {
	statusCmd.Flags().String("project", ".", "Project directory to inspect")
	statusCmd.Flags().String("profile", "claude", "Profile whose ledger to read")
	rootCmd.AddCommand(statusCmd)
}
