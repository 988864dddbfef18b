package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Escape    key.Binding
	Quit      key.Binding
	Layout    key.Binding
	Publish   key.Binding
	Reconnect key.Binding
	Leave     key.Binding
	Debug     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Layout: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "layout"),
		),
		Publish: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "camera"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Leave: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "leave"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug log"),
		),
	}
}

// footer returns the bindings shown in the menu.
func (k KeyMap) footer() []key.Binding {
	return []key.Binding{k.Publish, k.Layout, k.Reconnect, k.Leave, k.Debug, k.Quit}
}
