// Package notice renders the blocking session error notice.
package notice

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/videoroom/room/internal/theme"
)

// View renders msg as a centered notice box. It has no dismiss action.
func View(msg string, width int) string {
	if width < 30 {
		width = 30
	}
	boxW := width / 2
	if boxW < 28 {
		boxW = 28
	}
	box := lipgloss.NewStyle().
		Width(boxW).
		Padding(1, 2).
		Align(lipgloss.Center).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(theme.ColorDanger).
		Render(theme.StyleError.Render(msg))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}
