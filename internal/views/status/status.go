package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/videoroom/room/internal/room"
	"github.com/videoroom/room/internal/session"
	"github.com/videoroom/room/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Session     session.Snapshot
	SessionID   string
	Subscribers int
	Layout      room.Layout
	Publishing  bool
	Width       int
}

// New creates a status bar model.
func New(sessionID string) Model {
	return Model{SessionID: sessionID}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch m.Session.State {
	case session.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorConnected).Render("● Connected")
	case session.Errored:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorErrored).Render("✗ Not connected")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorConnecting).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep +
		fmt.Sprintf("%d subscribers", m.Subscribers) + sep +
		fmt.Sprintf("layout: %s", m.Layout)
	if m.Publishing {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorPublisher).Render("● publishing")
	}
	if m.SessionID != "" {
		content += sep + theme.StyleDimmed.Render(truncate(m.SessionID, 16))
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
