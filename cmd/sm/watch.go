package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/config"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
	"github.com/skillmeat/skillmeat/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "collection",
	Short:   "Watch collection.toml and repair cache drift as it happens",
	Long: `Watch the collection manifest for edits made outside sm (a text
editor, a git pull) and re-import any tag definitions or groups the
cache is missing after each change. Rows the cache already has are
never touched.

Runs until interrupted. Changes are debounced (config watch.debounce,
default 500ms) so an editor's save burst triggers one refresh.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		debounce := config.GetDuration("watch.debounce")
		if debounce <= 0 {
			debounce = 500 * time.Millisecond
		}

		w, err := watcher.New(col.ManifestPath(), debounce, refreshOnManifestChange)
		if err != nil {
			FatalErrorRespectJSON("starting watcher: %v", err)
		}
		defer w.Close()

		if !jsonOutput {
			fmt.Printf("Watching %s (Ctrl-C to stop)\n", col.ManifestPath())
			if w.Polling() {
				fmt.Println(ui.RenderMuted("Filesystem events unavailable; falling back to polling."))
			}
		}

		w.Start(rootCtx)
		<-rootCtx.Done()
		if !jsonOutput {
			fmt.Println("\nStopped.")
		}
	},
}

// refreshOnManifestChange runs after each debounced manifest change. Load
// failures are warnings, not exits: a half-written save often resolves by
// the next event.
func refreshOnManifestChange() {
	err := syncer.CheckDrift(rootCtx, col, mainCollectionID)
	if err == nil {
		if !jsonOutput {
			fmt.Printf("%s manifest changed, cache in sync\n", stampNow())
		}
		return
	}
	if !types.IsKind(err, types.KindCacheDrift) {
		fmt.Fprintf(os.Stderr, "Warning: reading manifest: %v\n", err)
		return
	}

	res, rerr := syncer.RefreshCollection(rootCtx, col, mainCollectionID)
	if rerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache refresh failed: %v\n", rerr)
		return
	}
	if jsonOutput {
		outputJSON(res)
		return
	}
	line := fmt.Sprintf("%s drift repaired: %d tag(s), %d group(s) imported",
		stampNow(), res.TagsImported, res.GroupsImported)
	if res.MembersSkipped > 0 {
		line += fmt.Sprintf(" (%d member(s) unresolved)", res.MembersSkipped)
	}
	fmt.Println(ui.RenderPass("✓") + " " + line)
}

func stampNow() string {
	return ui.RenderMuted(time.Now().Format("15:04:05"))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
