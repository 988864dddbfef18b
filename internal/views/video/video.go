// Package video renders the publisher tile and the subscriber stream
// container.
package video

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/videoroom/room/internal/room"
	"github.com/videoroom/room/internal/sdk"
	"github.com/videoroom/room/internal/session"
	"github.com/videoroom/room/internal/theme"
)

const (
	tileWidth   = 24
	tileHeight  = 5
	speakerRows = 9
)

// TileFunc renders one subscriber tile.
type TileFunc func(st sdk.Stream, width, height int, featured bool) string

// Publisher describes the local participant.
type Publisher struct {
	Name       string
	Publishing bool
}

// PublisherView renders the local participant's tile.
func PublisherView(p Publisher) string {
	name := p.Name
	if name == "" {
		name = "me"
	}
	state := theme.StyleDimmed.Render("camera off")
	if p.Publishing {
		state = lipgloss.NewStyle().Foreground(theme.ColorPublisher).Render("● live")
	}
	return tile(theme.ColorPublisher, tileWidth, tileHeight,
		theme.StyleHeader.Render(name+" (you)"), state)
}

// SubscriberTile is the default TileFunc.
func SubscriberTile(st sdk.Stream, width, height int, featured bool) string {
	name := st.Name
	if name == "" && len(st.ID) >= 8 {
		name = st.ID[:8]
	}
	if width > 9 && ansi.StringWidth(name) > width-6 {
		name = ansi.Truncate(name, width-6, "...")
	}

	media := "video"
	if !st.HasVideo {
		media = "audio only"
	}
	if !st.HasAudio {
		media += ", muted"
	}

	color := theme.ColorSubscriber
	if featured {
		color = theme.ColorSpeaker
	}
	return tile(color, width, height, theme.StyleHeader.Render(name), theme.StyleDimmed.Render(media))
}

func tile(color lipgloss.Color, width, height int, lines ...string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// StreamsView renders one tile per remote stream, arranged by the layout in
// ctx. Nothing is rendered for streams until the session value in ctx
// reports a connection.
func StreamsView(ctx context.Context, streams []sdk.Stream, width int, render TileFunc) string {
	if render == nil {
		render = SubscriberTile
	}
	v, _ := session.FromContext(ctx)
	if !v.IsConnected() {
		return theme.StyleDimmed.Render("  Waiting for session...")
	}
	if len(streams) == 0 {
		return theme.StyleDimmed.Render("  No one else is here yet")
	}

	header := theme.StyleDimmed.Render(fmt.Sprintf("  %d subscribed", room.SubscriberCount(ctx)))

	switch room.LayoutFrom(ctx) {
	case room.LayoutSpeaker:
		return lipgloss.JoinVertical(lipgloss.Left, header, speaker(streams, width, render))
	default:
		return lipgloss.JoinVertical(lipgloss.Left, header, grid(streams, width, render))
	}
}

func grid(streams []sdk.Stream, width int, render TileFunc) string {
	perRow := width / (tileWidth + 2)
	if perRow < 1 {
		perRow = 1
	}
	var rows []string
	for i := 0; i < len(streams); i += perRow {
		end := min(i+perRow, len(streams))
		var tiles []string
		for _, st := range streams[i:end] {
			tiles = append(tiles, render(st, tileWidth, tileHeight, false))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func speaker(streams []sdk.Stream, width int, render TileFunc) string {
	mainW := width - 4
	if mainW < tileWidth {
		mainW = tileWidth
	}
	featured := render(streams[0], mainW, speakerRows, true)
	if len(streams) == 1 {
		return featured
	}
	strip := grid(streams[1:], width, render)
	return lipgloss.JoinVertical(lipgloss.Left, featured, strip)
}
