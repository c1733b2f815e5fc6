package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every renderer. Adaptive pairs keep output readable
// on both light and dark terminals.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#656D76", Dark: "#7D8590"}
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// RenderPass styles s as a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles s as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles s as a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles s as secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderAccent styles s in the accent color.
func RenderAccent(s string) string { return accentStyle.Render(s) }
