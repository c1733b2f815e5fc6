package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
)

// SetNode is one element of a deployment-set tree view: the root set, a
// nested set, a group, or a leaf artifact.
type SetNode struct {
	Label    string
	Children []*SetNode
}

// BuildSetTree constructs a lipgloss/tree for a resolved set hierarchy.
func BuildSetTree(root *SetNode) *tree.Tree {
	if root == nil {
		return nil
	}

	t := tree.New().Root(root.Label)
	t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	t.RootStyle(lipgloss.NewStyle().Bold(true).Foreground(ColorAccent))

	var add func(parent *tree.Tree, node *SetNode)
	add = func(parent *tree.Tree, node *SetNode) {
		if len(node.Children) == 0 {
			parent.Child(node.Label)
			return
		}
		child := tree.New().Root(node.Label)
		child.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
		for _, c := range node.Children {
			add(child, c)
		}
		parent.Child(child)
	}
	for _, c := range root.Children {
		add(t, c)
	}

	return t
}

// RenderSetTree renders a set hierarchy using lipgloss/tree.
func RenderSetTree(root *SetNode) string {
	t := BuildSetTree(root)
	if t == nil {
		return TableHintStyle.Render("No members.")
	}
	return t.String()
}

// RenderSetsTable renders multiple set trees inside a single structured table.
func RenderSetsTable(sets []struct {
	Name string
	Root *SetNode
}, width int) string {
	if len(sets) == 0 {
		return TableHintStyle.Render("No deployment sets defined.")
	}

	rows := [][]string{}
	for _, s := range sets {
		rows = append(rows, []string{
			lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Render(s.Name),
			RenderSetTree(s.Root),
		})
	}

	return NewTable(width).
		Headers("Set", fmt.Sprintf("Members (%d sets)", len(sets))).
		Rows(rows...).
		BorderRow(true).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col == 0 {
					return TableHeaderStyle.Width(25)
				}
				return TableHeaderStyle.Width(width - 25 - 3)
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Border(lipgloss.NormalBorder(), false, true, false, false).
					BorderForeground(ColorMuted).
					Width(25).
					PaddingTop(1) // Align with first line of tree
			}
			return style
		}).
		String()
}
