package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/queries"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "artifacts",
	Short:   "List collection artifacts",
	Long: `List the artifacts in the collection with their version, tags, and
deployment state. Filters combine; --search ranks matches by relevance
using the full-text index when it is available.

Examples:
  sm list                           # Everything
  sm list --type skill              # Skills only
  sm list --tag quality             # One tag
  sm list --search "code review"    # Full-text search
  sm list --deployed-since "last monday"
  sm list --json                    # Machine-readable`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		tagFlag, _ := cmd.Flags().GetString("tag")
		searchFlag, _ := cmd.Flags().GetString("search")
		sinceFlag, _ := cmd.Flags().GetString("deployed-since")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		opts := queries.ListOptions{
			CollectionID: mainCollectionID,
			Search:       searchFlag,
			Tag:          tagFlag,
		}
		if typeFlag != "" {
			t := types.ArtifactType(typeFlag)
			if !t.IsValid() {
				FatalErrorRespectJSON("unknown artifact type %q (want one of %s)", typeFlag, typeList())
			}
			opts.Type = t
		}
		if sinceFlag != "" {
			since, err := queries.ParseSince(sinceFlag, time.Now())
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			opts.DeployedSince = since
		}

		entries, err := queries.List(rootCtx, store, opts)
		if err != nil {
			FatalErrorRespectJSON("listing artifacts: %v", err)
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}
		if searchFlag != "" {
			printSearchResults(searchFlag, entries)
			return
		}

		rows := make([]ui.ArtifactRow, len(entries))
		for i, e := range entries {
			rows[i] = ui.ArtifactRow{
				Key:      e.Key(),
				Version:  e.Artifact.DeployedVersion,
				Tags:     e.Tags,
				Deployed: e.Artifact.DeployedVersion != "",
				Outdated: e.Artifact.Outdated,
			}
		}
		fmt.Println(ui.RenderArtifactsTable(rows, ui.GetWidth()))
	},
}

// printSearchResults renders ranked hits, or suggestions when the query
// came back empty.
func printSearchResults(query string, entries []*queries.ListEntry) {
	if len(entries) == 0 {
		names := allArtifactNames()
		suggestions := queries.Suggest(query, names, 3)
		fmt.Println(ui.RenderNoResults(query, suggestions, ui.GetWidth()))
		return
	}

	results := make([]ui.SearchResultItem, len(entries))
	for i, e := range entries {
		results[i] = ui.SearchResultItem{Key: e.Key(), Description: e.Artifact.Description}
	}
	fmt.Println(ui.RenderSearchResults(query, results, ui.GetWidth()))
}

// allArtifactNames returns every artifact name in the registry for
// did-you-mean suggestions.
func allArtifactNames() []string {
	arts, err := store.ListArtifacts(rootCtx, types.ArtifactFilter{CollectionID: mainCollectionID})
	if err != nil {
		return nil
	}
	names := make([]string, len(arts))
	for i, a := range arts {
		names[i] = a.Name
	}
	return names
}

func init() {
	listCmd.Flags().String("type", "", "Filter by artifact type")
	listCmd.Flags().String("tag", "", "Filter by tag slug")
	listCmd.Flags().String("search", "", "Full-text search query")
	listCmd.Flags().String("deployed-since", "", "Only artifacts deployed since a date (absolute or natural language)")
	rootCmd.AddCommand(listCmd)
}
