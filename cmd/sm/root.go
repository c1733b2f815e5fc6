package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/config"
	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/writethrough"
)

// mainCollectionID names the workspace's primary collection in the cache.
// The on-disk manifest carries the display name; the cache key is stable.
const mainCollectionID = "main"

var (
	rootCtx    context.Context
	store      storage.Storage
	col        *collection.Store
	syncer     *writethrough.Syncer
	jsonOutput bool
	verbose    bool

	collectionFlag string
	dbFlag         string
)

var rootCmd = &cobra.Command{
	Use:   "sm",
	Short: "Manage and deploy AI workflow artifacts",
	Long: `sm maintains a collection of AI workflow artifacts (skills, commands,
agents, hooks, MCP configs) with full version lineage, and deploys them
into projects on platform roots such as .claude/ or .cursor/.

The collection directory is the source of truth for artifact content;
a SQLite registry tracks identity, version chains, tags, groups, and
deployment sets. Start with 'sm init', pull artifacts in with 'sm scan'
and 'sm import', and push them out with 'sm deploy'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
			// Non-fatal - continue with defaults
		}

		if verbose {
			debug.Enable(true)
			reportOverrides(cmd)
		} else if config.GetBool("debug") {
			debug.Enable(true)
		}
		if logFile := config.GetString("log.file"); logFile != "" {
			debug.ConfigureFile(logFile,
				config.GetInt("log.max-size-mb"),
				config.GetInt("log.max-backups"), 0)
		}

		if !jsonOutput {
			jsonOutput = config.GetBool("json")
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		debug.CloseFile()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&collectionFlag, "collection", "", "Collection directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Registry database path (default from config)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "collection", Title: "Collection Commands:"},
		&cobra.Group{ID: "artifacts", Title: "Artifact Commands:"},
		&cobra.Group{ID: "deploy", Title: "Deployment Commands:"},
	)
}

// reportOverrides tells the user when flags or env vars are shadowing
// config file values. Only runs in verbose mode.
func reportOverrides(cmd *cobra.Command) {
	flagOverrides := map[string]struct {
		Value  interface{}
		WasSet bool
	}{
		"json": {Value: jsonOutput, WasSet: cmd.Flags().Changed("json")},
	}
	for _, o := range config.CheckOverrides(flagOverrides) {
		config.LogOverride(o)
	}
}

// collectionDir resolves the active collection root without touching disk.
func collectionDir() string {
	if collectionFlag != "" {
		return collectionFlag
	}
	return config.CollectionDir()
}

// registryPath resolves the active registry database path.
func registryPath() string {
	if dbFlag != "" {
		return dbFlag
	}
	return config.RegistryDB()
}

// openWorkspace opens the registry and the collection store, failing when
// the workspace was never initialized. Commands that read or mutate
// artifacts call this first; sm init builds the workspace instead.
func openWorkspace() error {
	dir := collectionDir()
	c := collection.NewStore(dir)
	if _, err := os.Stat(c.ManifestPath()); err != nil {
		if os.IsNotExist(err) {
			return types.NewDetailError(types.KindNotFound, "sm", "no_collection_toml",
				"no collection at %s (run 'sm init' first)", dir)
		}
		return err
	}

	s, err := sqlite.New(rootCtx, registryPath())
	if err != nil {
		return err
	}

	store = s
	col = c
	syncer = writethrough.New(store)
	return nil
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// FatalErrorRespectJSON reports a fatal error in the active output mode
// and exits non-zero.
func FatalErrorRespectJSON(format string, args ...interface{}) {
	if jsonOutput {
		outputJSON(map[string]string{"error": fmt.Sprintf(format, args...)})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", fmt.Sprintf(format, args...))
	}
	os.Exit(1)
}
