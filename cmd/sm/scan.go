package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:     "scan [path]",
	GroupID: "artifacts",
	Short:   "Discover artifacts under a directory",
	Long: `Scan a directory tree for importable artifacts and report what was
found. Candidates already present in both the collection and the scanned
project are marked as in the collection; paths the project has skipped
stay listed but are marked skipped.

Scan modes:
  auto        .claude/ if present, artifacts/ if present, else the path itself
  project     scan <path>/.claude
  collection  scan <path>/artifacts

Examples:
  sm scan                          # Scan the current project
  sm scan ~/src/other-project      # Scan another project
  sm scan ~/skills --mode auto     # Scan a loose directory of artifacts
  sm scan --all                    # Include artifacts already imported`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		modeFlag, _ := cmd.Flags().GetString("mode")
		showAll, _ := cmd.Flags().GetBool("all")

		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			FatalErrorRespectJSON("resolving %s: %v", root, err)
		}

		mode, err := parseScanMode(modeFlag)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		hits, err := discovery.Scan(abs, mode)
		if err != nil {
			FatalErrorRespectJSON("scanning %s: %v", abs, err)
		}

		// Without an initialized collection the scan still works; every
		// hit is simply a fresh candidate.
		collectionKeys := map[string]bool{}
		if err := openWorkspace(); err == nil {
			if keys, err := col.ArtifactKeys(rootCtx); err == nil {
				collectionKeys = keys
			}
		} else if !types.IsKind(err, types.KindNotFound) {
			FatalErrorRespectJSON("%v", err)
		}

		pre, err := discovery.PreScan(hits, collectionKeys, abs)
		if err != nil {
			FatalErrorRespectJSON("classifying candidates: %v", err)
		}

		skips, err := discovery.LoadSkipPrefs(abs)
		if err != nil {
			FatalErrorRespectJSON("reading skip preferences: %v", err)
		}
		importable := discovery.FilterSkipped(pre.Importable, skips)
		skipped := len(pre.Importable) - len(importable)

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"root":            abs,
				"mode":            string(mode),
				"importable":      importable,
				"already_present": pre.AlreadyPresent,
				"skipped":         skipped,
			})
			return
		}

		rows := scanRows(importable, pre.Importable, pre.AlreadyPresent, skips, showAll)
		fmt.Println(ui.RenderScanReport(abs, rows, ui.GetWidth()))
	},
}

// parseScanMode maps the --mode flag onto a discovery mode.
func parseScanMode(s string) (discovery.ScanMode, error) {
	switch s {
	case "", "auto":
		return discovery.ModeAuto, nil
	case "project":
		return discovery.ModeProject, nil
	case "collection":
		return discovery.ModeCollection, nil
	default:
		return "", types.NewDetailError(types.KindValidation, "sm.scan",
			"bad_mode", "unknown scan mode %q (want auto, project, or collection)", s)
	}
}

// scanRows flattens the pre-scan partitions into display rows. Skipped
// and already-present candidates only appear with --all.
func scanRows(importable, allImportable, present []types.DiscoveredArtifact, skips []discovery.SkipPref, showAll bool) []ui.ScanRow {
	imported := make(map[string]bool, len(importable))
	for i := range importable {
		imported[importable[i].Key()] = true
	}

	rows := []ui.ScanRow{}
	for i := range importable {
		rows = append(rows, scanRow(&importable[i], "importable"))
	}
	if showAll {
		for i := range allImportable {
			if !imported[allImportable[i].Key()] {
				rows = append(rows, scanRow(&allImportable[i], "skipped"))
			}
		}
		for i := range present {
			rows = append(rows, scanRow(&present[i], "present"))
		}
	}
	return rows
}

func scanRow(d *types.DiscoveredArtifact, status string) ui.ScanRow {
	path := d.Path
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, d.Path); err == nil && len(rel) < len(path) {
			path = rel
		}
	}
	return ui.ScanRow{Key: d.Key(), Path: path, Confidence: d.Confidence, Status: status}
}

func init() {
	scanCmd.Flags().String("mode", "auto", "Scan mode: auto, project, or collection")
	scanCmd.Flags().Bool("all", false, "Include skipped and already-imported artifacts")
	rootCmd.AddCommand(scanCmd)
}
