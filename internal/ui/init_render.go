package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/charmbracelet/lipgloss/table"
)

// InitResult aggregates all information from the initialization process.
type InitResult struct {
	CollectionName string
	CollectionPath string
	DBPath         string

	// Step results
	CreatedFiles []string
	Profiles     []string

	// Diagnostics
	Warnings []string

	// Next steps
	QuickstartCommands []string
}

// RenderInitReport generates the report for the init command.
func RenderInitReport(res InitResult, width int) string {
	var sections []string

	// 1. Success Header (Minimal)
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPass).
		Render("✓ Collection Initialized Successfully")
	sections = append(sections, header, "")

	// 2. Hierarchical Progress List (using lipgloss/list)
	l := list.New().
		Enumerator(func(_ list.Items, i int) string {
			return RenderPass("✓")
		}).
		EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))

	l.Item("Collection: " + res.CollectionPath)
	if len(res.CreatedFiles) > 0 {
		files := list.New().Enumerator(func(_ list.Items, i int) string {
			return RenderPass("✓")
		}).EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))
		for _, f := range res.CreatedFiles {
			files.Item(f)
		}
		l.Item(files)
	}
	l.Item("Registry: " + res.DBPath)
	if len(res.Profiles) > 0 {
		l.Item("Deployment profiles: " + strings.Join(res.Profiles, ", "))
	}

	sections = append(sections, l.String(), "")

	// 3. Setup Details Table (Summary)
	detailsRows := [][]string{
		{"Collection", res.CollectionName},
		{"Manifest", "collection.toml"},
		{"Registry DB", res.DBPath},
	}

	summaryTable := NewTable(width).
		Headers("Component", "Configuration").
		Rows(detailsRows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col == 0 {
					return TableHeaderStyle.Width(20)
				}
				return TableHeaderStyle.Width(width - 20 - 3)
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		})

	sections = append(sections, summaryTable.String(), "")

	// 4. Warnings
	if len(res.Warnings) > 0 {
		warnBox := lipgloss.NewStyle().
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)

		var warnContent []string
		warnContent = append(warnContent, lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render("⚠ Setup Incomplete / Warnings:"))
		for _, issue := range res.Warnings {
			warnContent = append(warnContent, "  • "+issue)
		}

		sections = append(sections, warnBox.Render(strings.Join(warnContent, "\n")), "")
	}

	// 5. Next Steps
	if len(res.QuickstartCommands) > 0 {
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Next Steps:"))
		for _, cmd := range res.QuickstartCommands {
			sections = append(sections, "  • "+lipgloss.NewStyle().Foreground(ColorAccent).Render(cmd))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
