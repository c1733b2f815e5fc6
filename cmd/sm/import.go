package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/git"
	"github.com/skillmeat/skillmeat/internal/importer"
	"github.com/skillmeat/skillmeat/internal/sourcespec"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
	"github.com/skillmeat/skillmeat/internal/utils"
)

// sourcesDirName holds fetched remote sources under the collection root.
// Composite children stay pinned to paths inside it, so promoted fetches
// are not temp data.
const sourcesDirName = ".sources"

var importCmd = &cobra.Command{
	Use:     "import <path | owner/repo/path | github-url>",
	GroupID: "artifacts",
	Short:   "Import an artifact or plugin into the collection",
	Long: `Import an artifact from a local path or a GitHub source into the
collection. Directories with plugin.json or multiple artifact containers
import as composites: every child is hashed, deduplicated against the
registry, and pinned to the imported content.

Remote sources are shallow-cloned. Both the marketplace shorthand
(owner/repo/path[@version]) and github.com tree/blob URLs work.

Examples:
  sm import ./skills/code-review              # Local skill directory
  sm import ~/dots/commands/deploy.md         # Single command file
  sm import ./my-plugin --plugin              # Insist on composite import
  sm import acme/skills/code-review           # Fetch from GitHub
  sm import https://github.com/acme/kit/tree/main/plugins/release`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		pluginFlag, _ := cmd.Flags().GetBool("plugin")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		path, spec, cleanup := resolveImportSource(args[0])
		sourceURL := ""
		if spec != nil {
			sourceURL = spec.String()
		}

		if typeFlag == "" {
			graph, err := discovery.DetectComposite(path)
			if err != nil {
				FatalErrorRespectJSON("inspecting %s: %v", path, err)
			}
			if graph != nil {
				if spec != nil {
					// Composite children are pinned by path, so the
					// fetched tree must outlive the import.
					path = promoteFetchedSource(path, spec)
					cleanup()
					graph, err = discovery.DetectComposite(path)
					if err != nil {
						FatalErrorRespectJSON("re-reading fetched source at %s: %v", path, err)
					}
					if graph == nil {
						FatalErrorRespectJSON("fetched source at %s no longer detects as a composite", path)
					}
				}
				runCompositeImport(graph, sourceURL)
				return
			}
		}
		if pluginFlag {
			FatalErrorRespectJSON("%s is not a composite (no plugin.json and no recognized subcontainers)", path)
		}

		runSingleImport(detectSingle(path, typeFlag), sourceURL)
		if cleanup != nil {
			cleanup()
		}
	},
}

// resolveImportSource turns the positional argument into a local path.
// Anything not on disk is parsed as a remote source spec and fetched
// into the collection's staging area; for those the parsed source and a
// cleanup func come back non-nil.
func resolveImportSource(arg string) (string, *sourcespec.Spec, func()) {
	if _, err := os.Stat(arg); err == nil {
		abs, err := filepath.Abs(arg)
		if err != nil {
			FatalErrorRespectJSON("resolving %s: %v", arg, err)
		}
		return abs, nil, nil
	}

	spec, err := sourcespec.Parse(arg)
	if err != nil {
		FatalErrorRespectJSON("%s is neither a local path nor a source spec: %v", arg, err)
	}
	staging := filepath.Join(col.Root(), sourcesDirName)
	dir, cleanup, err := git.FetchSource(rootCtx, spec.RepoURL(), spec.Ref, spec.Path, staging)
	if err != nil {
		FatalErrorRespectJSON("fetching %s: %v", spec, err)
	}
	return dir, spec, cleanup
}

// promoteFetchedSource renames a fetched composite out of its staging
// directory to a stable path under .sources/ named after its source.
func promoteFetchedSource(fetched string, spec *sourcespec.Spec) string {
	parts := []string{spec.Owner, spec.Repo}
	if spec.Path != "" {
		parts = append(parts, strings.ReplaceAll(spec.Path, "/", "-"))
	}
	stable := filepath.Join(col.Root(), sourcesDirName, types.Slugify(strings.Join(parts, "-")))
	if err := utils.ReplaceDir(fetched, stable); err != nil {
		FatalErrorRespectJSON("keeping fetched source: %v", err)
	}
	return stable
}

// detectSingle classifies path as exactly one artifact type, either the
// forced one or by probing every signature.
func detectSingle(path, typeFlag string) *types.DiscoveredArtifact {
	if typeFlag != "" {
		t := types.ArtifactType(typeFlag)
		if !t.IsValid() {
			FatalErrorRespectJSON("unknown artifact type %q (want one of %s)", typeFlag, typeList())
		}
		d, err := discovery.Detect(path, t)
		if err != nil {
			FatalErrorRespectJSON("inspecting %s: %v", path, err)
		}
		if d == nil {
			FatalErrorRespectJSON("%s does not look like a %s", path, t)
		}
		return d
	}

	var hits []*types.DiscoveredArtifact
	for _, t := range types.AllArtifactTypes {
		d, err := discovery.Detect(path, t)
		if err != nil {
			FatalErrorRespectJSON("inspecting %s: %v", path, err)
		}
		if d != nil {
			hits = append(hits, d)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0]
	case 0:
		FatalErrorRespectJSON("nothing importable at %s (force a type with --type)", path)
	default:
		kinds := make([]string, len(hits))
		for i, d := range hits {
			kinds[i] = string(d.Type)
		}
		FatalErrorRespectJSON("%s is ambiguous (%s); pick one with --type", path, strings.Join(kinds, ", "))
	}
	return nil
}

func runSingleImport(d *types.DiscoveredArtifact, sourceURL string) {
	out, err := importer.ImportArtifact(rootCtx, store, col.Root(), d, sourceURL, "", mainCollectionID)
	if err != nil {
		FatalErrorRespectJSON("importing %s: %v", d.Key(), err)
	}
	if err := syncer.SyncArtifactEntry(rootCtx, col, mainCollectionID, out.Artifact.UUID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if jsonOutput {
		outputJSON(out)
		return
	}
	switch out.Decision {
	case types.LinkExisting:
		fmt.Printf("%s %s already in the collection (content unchanged)\n", ui.RenderMuted("="), d.Key())
	case types.CreateNewVersion:
		fmt.Printf("%s %s: new version recorded\n", ui.RenderPass("✓"), d.Key())
	default:
		fmt.Printf("%s Imported %s\n", ui.RenderPass("✓"), d.Key())
	}
	fmt.Println(ui.RenderMuted("  " + out.Path))
}

func runCompositeImport(graph *types.DiscoveredGraph, sourceURL string) {
	result, err := importer.ImportPluginTransactional(rootCtx, store, col.Root(), graph, sourceURL, "", mainCollectionID)
	if err != nil {
		FatalErrorRespectJSON("importing %s: %v", graph.Parent.Name, err)
	}
	for i := range graph.Children {
		child := &graph.Children[i]
		a, err := store.GetArtifactByKey(rootCtx, child.Type, child.Name)
		if err == nil {
			err = syncer.SyncArtifactEntry(rootCtx, col, mainCollectionID, a.UUID)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: manifest entry for %s: %v\n", child.Key(), err)
		}
	}

	if jsonOutput {
		outputJSON(result)
		return
	}
	fmt.Printf("%s Imported %s (%s)\n", ui.RenderPass("✓"), graph.Parent.Name, result.PluginID)
	fmt.Printf("  %d imported, %d reused, %d children total\n",
		result.ChildrenImported, result.ChildrenReused, len(graph.Children))
}

func typeList() string {
	out := make([]string, len(types.AllArtifactTypes))
	for i, t := range types.AllArtifactTypes {
		out[i] = string(t)
	}
	return strings.Join(out, ", ")
}

func init() {
	importCmd.Flags().String("type", "", "Force the artifact type (skill, command, agent, hook, mcp)")
	importCmd.Flags().Bool("plugin", false, "Require the source to import as a composite")
	rootCmd.AddCommand(importCmd)
}
