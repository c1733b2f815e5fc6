package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var skipProjectFlag string

var skipCmd = &cobra.Command{
	Use:     "skip",
	GroupID: "artifacts",
	Short:   "Manage per-project skip preferences",
	Long: `Manage the artifacts a project never wants offered for import.
Skipped artifacts still show up under 'sm scan --all', marked as
skipped, but are dropped from the importable list.

Preferences live in .claude/.skillmeat_skip_prefs.toml inside the
project, so each project keeps its own list.

Examples:
  sm skip add skill:code-review --reason "project-specific fork"
  sm skip rm skill:code-review
  sm skip list`,
}

var skipAddCmd = &cobra.Command{
	Use:   "add <artifact-key>",
	Short: "Stop offering an artifact for import",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		project := mustResolveProject(skipProjectFlag)
		if err := discovery.AddSkipPref(rootCtx, project, args[0], reason); err != nil {
			FatalErrorRespectJSON("skipping %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"skipped": args[0], "reason": reason})
			return
		}
		fmt.Printf("%s Skipping %s\n", ui.RenderPass("✓"), args[0])
	},
}

var skipRmCmd = &cobra.Command{
	Use:   "rm <artifact-key>",
	Short: "Offer a skipped artifact for import again",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		project := mustResolveProject(skipProjectFlag)
		if err := discovery.RemoveSkipPref(rootCtx, project, args[0]); err != nil {
			FatalErrorRespectJSON("unskipping %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"unskipped": args[0]})
			return
		}
		fmt.Printf("%s No longer skipping %s\n", ui.RenderPass("✓"), args[0])
	},
}

var skipListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the project's skipped artifacts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		project := mustResolveProject(skipProjectFlag)
		skips, err := discovery.LoadSkipPrefs(project)
		if err != nil {
			FatalErrorRespectJSON("reading skip prefs: %v", err)
		}
		if jsonOutput {
			if skips == nil {
				skips = []discovery.SkipPref{}
			}
			outputJSON(skips)
			return
		}
		if len(skips) == 0 {
			fmt.Println(ui.RenderMuted("No skipped artifacts."))
			return
		}
		for _, s := range skips {
			line := s.ArtifactKey
			if s.SkipReason != "" {
				line += "  " + ui.RenderMuted(s.SkipReason)
			}
			fmt.Printf("%s  %s\n", line, ui.RenderMuted("since "+s.AddedDate))
		}
	},
}

// mustResolveProject turns a --project flag value into an absolute path.
func mustResolveProject(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		FatalErrorRespectJSON("resolving project path: %v", err)
	}
	return abs
}

func init() {
	skipCmd.PersistentFlags().StringVar(&skipProjectFlag, "project", ".", "Project directory holding the skip preferences")
	skipAddCmd.Flags().String("reason", "", "Why this artifact is skipped")
	skipCmd.AddCommand(skipAddCmd, skipRmCmd, skipListCmd)
	rootCmd.AddCommand(skipCmd)
}
