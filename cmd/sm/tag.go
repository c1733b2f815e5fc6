package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var tagCmd = &cobra.Command{
	Use:     "tag",
	GroupID: "artifacts",
	Short:   "Manage artifact tags",
	Long: `Manage tags on artifacts. Every mutation writes through to the
collection: artifact frontmatter and collection.toml follow the change
immediately.

Examples:
  sm tag add skill:code-review quality   # Attach (creates the tag if new)
  sm tag rm skill:code-review quality    # Detach (definition survives)
  sm tag rename quality code-quality     # Rename everywhere
  sm tag delete quality                  # Remove definition and detach all
  sm tag list`,
}

var tagAddCmd = &cobra.Command{
	Use:   "add <artifact-key> <tag-name>",
	Short: "Attach a tag to an artifact",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		a := mustFindArtifact(args[0])
		tag, err := syncer.TagArtifact(rootCtx, col, mainCollectionID, a.UUID, args[1])
		if err != nil {
			FatalErrorRespectJSON("tagging %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(tag)
			return
		}
		fmt.Printf("%s Tagged %s with %s\n", ui.RenderPass("✓"), args[0], tag.Name)
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <artifact-key> <tag>",
	Short: "Detach a tag from an artifact",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		a := mustFindArtifact(args[0])
		if err := syncer.UntagArtifact(rootCtx, col, mainCollectionID, a.UUID, types.Slugify(args[1])); err != nil {
			FatalErrorRespectJSON("untagging %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"artifact": args[0], "removed": types.Slugify(args[1])})
			return
		}
		fmt.Printf("%s Removed %s from %s\n", ui.RenderPass("✓"), args[1], args[0])
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <tag> <new-name>",
	Short: "Rename a tag across all artifacts",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		tag, err := syncer.RenameTag(rootCtx, col, mainCollectionID, types.Slugify(args[0]), args[1])
		if err != nil {
			FatalErrorRespectJSON("renaming tag %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(tag)
			return
		}
		fmt.Printf("%s Renamed %s to %s\n", ui.RenderPass("✓"), args[0], tag.Name)
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete a tag definition and detach it everywhere",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		slug := types.Slugify(args[0])
		if !yes && !jsonOutput {
			q := fmt.Sprintf("Delete tag %q and remove it from every artifact?", args[0])
			if !ui.Confirm(q, false) {
				fmt.Println("Aborted.")
				return
			}
		}
		if err := syncer.DeleteTag(rootCtx, col, mainCollectionID, slug); err != nil {
			FatalErrorRespectJSON("deleting tag %s: %v", args[0], err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"deleted": slug})
			return
		}
		fmt.Printf("%s Deleted tag %s\n", ui.RenderPass("✓"), args[0])
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tag definitions with usage counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		tags, err := store.ListTags(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("listing tags: %v", err)
		}

		type tagCount struct {
			*types.Tag
			Artifacts int `json:"artifacts"`
		}
		counts := make([]tagCount, len(tags))
		for i, tag := range tags {
			uuids, _ := store.GetArtifactsByTag(rootCtx, tag.ID)
			counts[i] = tagCount{Tag: tag, Artifacts: len(uuids)}
		}

		if jsonOutput {
			outputJSON(counts)
			return
		}
		if len(counts) == 0 {
			fmt.Println(ui.RenderMuted("No tags defined."))
			return
		}
		for _, tc := range counts {
			line := fmt.Sprintf("%s (%s)", tc.Name, tc.Slug)
			if tc.Color != "" {
				line += " " + ui.RenderMuted(tc.Color)
			}
			fmt.Printf("%s  %s\n", line, ui.RenderMuted(fmt.Sprintf("%d artifact(s)", tc.Artifacts)))
		}
	},
}

// mustFindArtifact resolves an artifact key or exits with suggestions.
func mustFindArtifact(key string) *types.Artifact {
	t, name, err := types.ParseKey(key)
	if err != nil {
		FatalErrorRespectJSON("%v", err)
	}
	a, err := store.GetArtifactByKey(rootCtx, t, name)
	if err != nil {
		suggestAndFail(key, name)
	}
	return a
}

func init() {
	tagDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")
	tagCmd.AddCommand(tagAddCmd, tagRmCmd, tagRenameCmd, tagDeleteCmd, tagListCmd)
	rootCmd.AddCommand(tagCmd)
}
