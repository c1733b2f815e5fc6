package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ArtifactRow is one line of the artifact list view.
type ArtifactRow struct {
	Key      string
	Version  string
	Tags     []string
	Deployed bool
	Outdated bool
}

// RenderArtifactsTable renders the artifact list as a bordered table.
func RenderArtifactsTable(rows []ArtifactRow, width int) string {
	if len(rows) == 0 {
		return TableHintStyle.Render("No artifacts in the collection.")
	}

	tableRows := [][]string{}
	for _, r := range rows {
		state := ""
		if r.Deployed {
			state = RenderPass("deployed")
		}
		if r.Outdated {
			if state != "" {
				state += " "
			}
			state += RenderWarn("outdated")
		}
		tableRows = append(tableRows, []string{
			r.Key,
			r.Version,
			strings.Join(r.Tags, ", "),
			state,
		})
	}

	return NewTable(width).
		Headers("Artifact", "Version", "Tags", "State").
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
		String()
}

// SearchResultItem represents one search hit for rendering.
type SearchResultItem struct {
	Key         string
	Description string
}

// RenderSearchResults renders search hits with their rank order.
func RenderSearchResults(query string, results []SearchResultItem, width int) string {
	var sections []string

	header := fmt.Sprintf("🔍 Search: %q", query)
	sections = append(sections, TableHeaderStyle.Render(header))
	sections = append(sections, "") // Spacer

	if len(results) > 0 {
		rows := [][]string{}
		for i, r := range results {
			// Truncate description
			maxDescWidth := width - 30
			if maxDescWidth < 10 {
				maxDescWidth = 10
			}
			desc := r.Description
			if len(desc) > maxDescWidth {
				desc = desc[:maxDescWidth-3] + "..."
			}

			keyCol := fmt.Sprintf("%d. %s", i+1, r.Key)
			rows = append(rows, []string{keyCol, desc})
		}

		t := NewTable(width).
			Headers(fmt.Sprintf("📄 Found %d artifacts", len(results))).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return TableHeaderStyle.Width(width - 2)
				}
				// Column 0 (key) gets fixed width, column 1 takes the rest
				style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
				if col == 0 {
					style = style.Width(25)
				}
				return style
			})

		sections = append(sections, t.String())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderNoResults renders the empty search view with suggestions.
func RenderNoResults(query string, suggestions []string, width int) string {
	var sections []string

	header := fmt.Sprintf("🔍 Search: %q", query)
	sections = append(sections, TableHeaderStyle.Render(header))
	sections = append(sections, "") // Spacer

	sections = append(sections, TableWarningStyle.Render("  ⚠️  No artifacts found."))
	sections = append(sections, "") // Spacer

	if len(suggestions) > 0 {
		sections = append(sections, renderSingleTable("💡 Suggestions (Did you mean?)", suggestions, width))
	} else {
		sections = append(sections, TableHintStyle.Render("  Consider broadening your search or listing with `sm list`."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// DeployedRow is one line of the deployment status view.
type DeployedRow struct {
	Key        string
	Path       string
	Profile    string
	DeployedAt string
	Modified   bool
}

// RenderDeployedTable renders the tracker contents for one project.
func RenderDeployedTable(projectPath string, rows []DeployedRow, width int) string {
	title := fmt.Sprintf("📦 Deployed in %s", projectPath)
	if len(rows) == 0 {
		return NewTable(width).
			Headers(title).
			Rows([]string{"(nothing deployed)"}).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return TableHeaderStyle.Width(width - 2)
				}
				return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left).Foreground(ColorMuted)
			}).
			String()
	}

	tableRows := [][]string{}
	for _, r := range rows {
		state := ""
		if r.Modified {
			state = RenderWarn("modified")
		}
		tableRows = append(tableRows, []string{r.Key, r.Path, r.Profile, r.DeployedAt, state})
	}

	return NewTable(width).
		Headers("Artifact", "Path", "Profile", "Deployed", "").
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
		String()
}

// renderSingleTable renders a simple list into a 1-column table with a header.
func renderSingleTable(title string, items []string, width int) string {
	if len(items) == 0 {
		return ""
	}

	rows := [][]string{}
	for i, item := range items {
		rows = append(rows, []string{fmt.Sprintf("%d. %s", i+1, item)})
	}

	return NewTable(width).
		Headers(title).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Width(width - 2)
			}
			return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
		}).
		String()
}
