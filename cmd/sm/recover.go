package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/ui"
)

var recoverCmd = &cobra.Command{
	Use:     "recover",
	GroupID: "collection",
	Short:   "Rebuild droppable cache state from collection.toml",
	Long: `Rebuild tag definitions and groups in the registry cache from
collection.toml after a cache loss or a fresh clone of the collection.
Existing cache state stays authoritative: recovery only fills what is
empty, so running it twice is a no-op.

Registry tables (artifacts, version chains) are never touched; they
cannot be reconstructed from the manifest.

Examples:
  sm recover
  sm recover --json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		result, err := syncer.RecoverCollection(rootCtx, col, mainCollectionID)
		if err != nil {
			FatalErrorRespectJSON("recovering collection: %v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}

		if result.SkippedReason != "" {
			fmt.Printf("%s Recovery skipped: %s\n", ui.RenderWarn("!"), result.SkippedReason)
			return
		}
		fmt.Printf("%s Recovery complete\n", ui.RenderPass("✓"))
		if result.TagsSkipped {
			fmt.Println(ui.RenderMuted("  tags: cache already authoritative, skipped"))
		} else {
			fmt.Printf("  tags: %d imported\n", result.TagsImported)
		}
		if result.GroupsSkipped {
			fmt.Println(ui.RenderMuted("  groups: cache already authoritative, skipped"))
		} else {
			fmt.Printf("  groups: %d imported", result.GroupsImported)
			if result.MembersSkipped > 0 {
				fmt.Printf(" (%d unresolved member(s) dropped)", result.MembersSkipped)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
