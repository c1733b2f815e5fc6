package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ScanRow is one discovered candidate in the scan report.
type ScanRow struct {
	Key        string
	Path       string
	Confidence int
	// Status is "importable", "present", or "skipped".
	Status string
}

// RenderScanReport renders discovery results grouped by import status.
func RenderScanReport(root string, rows []ScanRow, width int) string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Render("Scan: " + root)
	b.WriteString(title + "\n\n")

	if len(rows) == 0 {
		b.WriteString(TableHintStyle.Render("No artifacts found.") + "\n")
		return b.String()
	}

	tableRows := [][]string{}
	importable := 0
	for _, r := range rows {
		status := ""
		switch r.Status {
		case "importable":
			status = RenderPass("importable")
			importable++
		case "present":
			status = RenderMuted("in collection")
		case "skipped":
			status = RenderWarn("skipped")
		}
		tableRows = append(tableRows, []string{
			r.Key,
			fmt.Sprintf("%d%%", r.Confidence),
			r.Path,
			status,
		})
	}

	b.WriteString(NewTable(width).
		Headers("Artifact", "Confidence", "Path", "Status").
		Rows(tableRows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		}).
		String())
	b.WriteString("\n\n")

	summary := fmt.Sprintf("%d found, %d importable", len(rows), importable)
	b.WriteString(TableHintStyle.Render(summary) + "\n")
	if importable > 0 {
		b.WriteString(TableHintStyle.Render("Import with: sm import <path>") + "\n")
	}
	return b.String()
}
