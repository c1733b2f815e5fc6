package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/queries"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <artifact-key>",
	GroupID: "artifacts",
	Short:   "Show one artifact's details and content",
	Long: `Show an artifact's registry details (versions, tags, deployment
state) and render its manifest content as markdown.

Examples:
  sm show skill:code-review
  sm show command:deploy --raw     # Print the file without rendering
  sm show skill:code-review --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, _ := cmd.Flags().GetBool("raw")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		t, name, err := types.ParseKey(args[0])
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		a, err := store.GetArtifactByKey(rootCtx, t, name)
		if err != nil {
			suggestAndFail(args[0], name)
		}

		queries.MarkOutdated(a)
		tags, _ := store.GetArtifactTags(rootCtx, a.UUID)
		chain, _ := store.VersionChain(rootCtx, a.UUID)
		ca, caErr := store.GetCollectionArtifact(rootCtx, mainCollectionID, a.UUID)

		body := ""
		contentPath := ""
		if caErr == nil {
			contentPath = manifestPathFor(a.Type, ca.Path)
			if data, err := os.ReadFile(contentPath); err == nil {
				body = string(data)
			}
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"artifact": a,
				"tags":     tags,
				"versions": chain,
				"path":     contentPath,
			})
			return
		}

		printArtifactHeader(a, tags, len(chain))
		if body == "" {
			fmt.Println(ui.RenderMuted("No content file found in the collection."))
			return
		}
		if raw {
			fmt.Print(body)
			return
		}
		fmt.Print(renderMarkdown(body))
	},
}

// suggestAndFail reports an unknown key with near-miss suggestions.
func suggestAndFail(key, name string) {
	msg := fmt.Sprintf("no artifact %q in the registry", key)
	if close := queries.Suggest(name, allArtifactNames(), 3); len(close) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(close, ", "))
	}
	FatalErrorRespectJSON("%s", msg)
}

// manifestPathFor resolves the file whose markdown body represents the
// artifact: the entry itself for file-based types, the signature
// manifest (SKILL.md and friends) for directory types.
func manifestPathFor(t types.ArtifactType, relPath string) string {
	abs := relPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(col.Root(), filepath.FromSlash(relPath))
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return abs
	}
	if sig, ok := discovery.SignatureFor(t); ok {
		for _, m := range sig.Manifests {
			p := filepath.Join(abs, m)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return abs
}

func printArtifactHeader(a *types.Artifact, tags []*types.Tag, versions int) {
	fmt.Println(ui.RenderAccent(types.MakeKey(a.Type, a.Name)))
	if a.Description != "" {
		fmt.Println("  " + a.Description)
	}
	if a.SourceURL != "" {
		fmt.Println(ui.RenderMuted("  source: " + a.SourceURL))
	}
	if len(tags) > 0 {
		names := make([]string, len(tags))
		for i, tag := range tags {
			names[i] = tag.Name
		}
		fmt.Println(ui.RenderMuted("  tags: " + strings.Join(names, ", ")))
	}
	state := fmt.Sprintf("  %d version(s)", versions)
	if a.DeployedVersion != "" {
		state += ", deployed " + a.DeployedVersion
		if a.UpstreamVersion != "" && a.Outdated {
			state += " (upstream " + a.UpstreamVersion + ")"
		}
	}
	fmt.Println(ui.RenderMuted(state))
	fmt.Println()
}

// renderMarkdown pretty-prints markdown for terminals and falls back to
// the raw text when rendering is unavailable.
func renderMarkdown(body string) string {
	if !ui.IsTerminal() {
		return body
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(ui.GetWidth()),
	)
	if err != nil {
		return body
	}
	out, err := r.Render(body)
	if err != nil {
		return body
	}
	return out
}

func init() {
	showCmd.Flags().Bool("raw", false, "Print the content file verbatim")
	rootCmd.AddCommand(showCmd)
}
