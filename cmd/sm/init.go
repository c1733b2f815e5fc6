package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/collection"
	"github.com/skillmeat/skillmeat/internal/deploy"
	"github.com/skillmeat/skillmeat/internal/storage/sqlite"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "collection",
	Short:   "Create a new artifact collection and registry",
	Long: `Create the collection directory (collection.toml plus artifacts/),
initialize the registry database, and seed the builtin deployment
profiles.

Runs an interactive setup form on a terminal; pass --name to skip it.

Examples:
  sm init                          # Interactive setup
  sm init --name "Team Skills"     # Non-interactive
  sm init --collection ~/col       # Explicit collection directory`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		quiet, _ := cmd.Flags().GetBool("quiet")

		dir := collectionDir()
		c := collection.NewStore(dir)
		if _, err := os.Stat(c.ManifestPath()); err == nil {
			FatalErrorRespectJSON("collection already initialized at %s", dir)
		}

		platformIDs := allProfileIDs()
		if name == "" && !quiet && !jsonOutput && ui.IsTerminal() {
			name, platformIDs = runInitForm(dir)
		}
		if name == "" {
			name = "Main"
		}

		if _, err := c.Init(rootCtx, name); err != nil {
			FatalErrorRespectJSON("creating collection: %v", err)
		}

		s, err := sqlite.New(rootCtx, registryPath())
		if err != nil {
			FatalErrorRespectJSON("creating registry: %v", err)
		}
		defer func() { _ = s.Close() }()

		var warnings []string
		if err := s.UpsertCollection(rootCtx, &types.Collection{
			ID:   mainCollectionID,
			Name: name,
			Path: dir,
		}); err != nil {
			FatalErrorRespectJSON("registering collection: %v", err)
		}

		var profiles []string
		for _, p := range deploy.DefaultProfiles(types.SentinelProjectID) {
			if !containsString(platformIDs, p.ProfileID) {
				continue
			}
			if err := s.UpsertProfile(rootCtx, p); err != nil {
				warnings = append(warnings, fmt.Sprintf("profile %s not seeded: %v", p.ProfileID, err))
				continue
			}
			profiles = append(profiles, fmt.Sprintf("%s (%s)", p.ProfileID, p.RootDir))
		}

		res := ui.InitResult{
			CollectionName: name,
			CollectionPath: dir,
			DBPath:         registryPath(),
			CreatedFiles:   []string{collection.ManifestName, "artifacts/"},
			Profiles:       profiles,
			Warnings:       warnings,
			QuickstartCommands: []string{
				"sm scan ~/projects/my-app    # find artifacts to import",
				"sm import <path>             # add an artifact to the collection",
				"sm list                      # see what you have",
			},
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"collection_name": name,
				"collection_path": dir,
				"db_path":         registryPath(),
				"profiles":        profiles,
				"warnings":        warnings,
			})
			return
		}
		if quiet {
			fmt.Printf("Initialized collection %q at %s\n", name, dir)
			return
		}
		fmt.Println(ui.RenderInitReport(res, ui.GetWidth()))
	},
}

// runInitForm collects the collection name and platform selection
// interactively.
func runInitForm(dir string) (string, []string) {
	name := filepath.Base(dir)
	if name == "main" || name == "." {
		name = "Main"
	}
	platforms := allProfileIDs()

	var options []huh.Option[string]
	for _, id := range allProfileIDs() {
		options = append(options, huh.NewOption(id, id))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("SkillMeat Setup").
				Description("A collection stores your skills, commands, agents, and hooks\nwith full version history, ready to deploy into any project."),

			huh.NewInput().
				Title("Collection name").
				Description("Display name recorded in collection.toml").
				Placeholder("Team Skills").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),

			huh.NewMultiSelect[string]().
				Title("Deployment platforms").
				Description("Platforms to seed deployment profiles for").
				Options(options...).
				Value(&platforms),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Setup cancelled: %v\n", err)
		os.Exit(1)
	}
	return strings.TrimSpace(name), platforms
}

func allProfileIDs() []string {
	ids := make([]string, 0, len(types.KnownProfileRoots))
	for _, root := range types.KnownProfileRoots {
		ids = append(ids, strings.TrimPrefix(root, "."))
	}
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func init() {
	initCmd.Flags().String("name", "", "Collection name (skips the interactive form)")
	initCmd.Flags().BoolP("quiet", "q", false, "Suppress the init report")
	rootCmd.AddCommand(initCmd)
}
