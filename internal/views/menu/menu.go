// Package menu renders the footer with the active key bindings.
package menu

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/videoroom/room/internal/theme"
)

// Model wraps the bubbles help view with the room's styling.
type Model struct {
	help help.Model
}

func New() Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(theme.ColorBright)
	h.Styles.ShortDesc = theme.StyleDimmed
	h.Styles.ShortSeparator = theme.StyleDimmed
	return Model{help: h}
}

// View renders bindings on one line, truncated to width.
func (m Model) View(bindings []key.Binding, width int) string {
	m.help.Width = width
	return "  " + m.help.ShortHelpView(bindings)
}
