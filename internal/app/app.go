package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/videoroom/room/internal/boundary"
	"github.com/videoroom/room/internal/room"
	"github.com/videoroom/room/internal/sdk"
	"github.com/videoroom/room/internal/session"
	"github.com/videoroom/room/internal/theme"
	"github.com/videoroom/room/internal/views/debug"
	"github.com/videoroom/room/internal/views/menu"
	"github.com/videoroom/room/internal/views/notice"
	"github.com/videoroom/room/internal/views/status"
	"github.com/videoroom/room/internal/views/video"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// SessionClient is the session SDK surface the root model drives.
type SessionClient interface {
	Connect(ctx context.Context) tea.Cmd
	ReadLoop(ctx context.Context) tea.Cmd
	Publish(name string) error
	Unpublish() error
	Disconnect() error
}

// Preloader fetches the session's assets before media starts.
type Preloader interface {
	PreloadCmd(ctx context.Context, timeout time.Duration) tea.Cmd
}

// Deps are the collaborators the root model is assembled from.
type Deps struct {
	Client         SessionClient
	Preloader      Preloader // optional
	Credentials    sdk.Credentials
	DisplayName    string
	PreloadTimeout time.Duration
	Logger         *slog.Logger
	DebugLog       *debug.Log
}

// ConnectionChangedMsg carries a propagated change from the tracker.
type ConnectionChangedMsg struct{ Snapshot session.Snapshot }

type reconnectMsg struct{}

// Model is the root Bubble Tea model. It renders, in order: the error
// boundary, the session wrapper, the layout and subscriber providers, the
// error notice, the publisher and the subscriber container.
type Model struct {
	client    SessionClient
	preloader Preloader
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	tracker  *session.Tracker
	wrapper  *Wrapper
	boundary *boundary.Boundary
	changes  chan session.Snapshot
	unsub    func()

	keys   KeyMap
	width  int
	height int

	streams        *room.Streams
	layout         room.Layout
	publisher      video.Publisher
	tile           video.TileFunc
	manifest       *sdk.Manifest
	preloadTimeout time.Duration
	leaving        bool
	connecting     bool // a connect command is in flight
	published      bool // the server holds our publisher stream

	overlay   Overlay
	statusBar status.Model
	menu      menu.Model
	debug     debug.Model
}

// New creates the root model.
func New(d Deps) Model {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	timeout := d.PreloadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	tracker := session.NewTracker(log)
	changes := make(chan session.Snapshot, 16)
	unsub := tracker.Subscribe(func(s session.Snapshot) {
		select {
		case changes <- s:
		default:
			log.Warn("connection change dropped, consumer too slow")
		}
	})

	return Model{
		client:         d.Client,
		preloader:      d.Preloader,
		log:            log.With("component", "app"),
		ctx:            ctx,
		cancel:         cancel,
		tracker:        tracker,
		wrapper:        NewWrapper(d.Credentials, tracker, log),
		boundary:       boundary.New(log),
		changes:        changes,
		unsub:          unsub,
		keys:           DefaultKeyMap(),
		streams:        room.NewStreams(),
		publisher:      video.Publisher{Name: d.DisplayName},
		tile:           video.SubscriberTile,
		preloadTimeout: timeout,
		connecting:     true, // Init always connects
		statusBar:      status.New(d.Credentials.SessionID),
		menu:           menu.New(),
		debug:          debug.New(d.DebugLog),
	}
}

// Tracker exposes the connection tracker.
func (m Model) Tracker() *session.Tracker {
	return m.tracker
}

// Init preloads the session assets and connects.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.client.Connect(m.ctx), m.waitForChange()}
	if m.preloader != nil {
		cmds = append(cmds, m.preloader.PreloadCmd(m.ctx, m.preloadTimeout))
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForChange() tea.Cmd {
	ch, ctx := m.changes, m.ctx
	return func() tea.Msg {
		select {
		case s := <-ch:
			return ConnectionChangedMsg{Snapshot: s}
		case <-ctx.Done():
			return nil
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sdk.PreloadedMsg:
		if msg.Err != nil {
			m.log.Warn("preload failed", "err", msg.Err)
			return m, nil
		}
		m.manifest = msg.Manifest
		m.log.Debug("preloaded", "version", msg.Manifest.Version, "codecs", len(msg.Manifest.Codecs))
		return m, nil

	case sdk.SessionConnectedMsg:
		m.wrapper.Handle(msg)
		m.connecting = false
		m.leaving = false
		return m, m.client.ReadLoop(m.ctx)

	case sdk.SessionDisconnectedMsg:
		m.wrapper.Handle(msg)
		m.streams.Clear()
		m.published = false
		if msg.Requested || m.leaving {
			return m, nil
		}
		return m, m.connect()

	case sdk.SessionErrorMsg:
		m.wrapper.Handle(msg)
		m.connecting = false
		if m.tracker.IsConnected() {
			return m, m.client.ReadLoop(m.ctx)
		}
		if msg.RetryIn > 0 && !m.leaving {
			return m, tea.Tick(msg.RetryIn, func(time.Time) tea.Msg { return reconnectMsg{} })
		}
		return m, nil

	case reconnectMsg:
		if m.tracker.IsConnected() || m.leaving {
			return m, nil
		}
		return m, m.connect()

	case sdk.StreamCreatedMsg:
		m.streams.Add(msg.Stream)
		return m, m.client.ReadLoop(m.ctx)

	case sdk.StreamDestroyedMsg:
		m.streams.Remove(msg.StreamID)
		return m, m.client.ReadLoop(m.ctx)

	case ConnectionChangedMsg:
		if msg.Snapshot.Connected {
			m.syncPublish()
		}
		return m, m.waitForChange()
	}

	return m, nil
}

// connect issues a connect command unless one is already in flight.
func (m *Model) connect() tea.Cmd {
	if m.connecting {
		return nil
	}
	m.connecting = true
	return m.client.Connect(m.ctx)
}

// syncPublish brings the server's view of our publisher stream in line
// with the local intent. It is a no-op while disconnected.
func (m *Model) syncPublish() {
	if !m.tracker.IsConnected() || m.publisher.Publishing == m.published {
		return
	}
	if m.publisher.Publishing {
		if err := m.client.Publish(m.publisher.Name); err != nil {
			m.log.Warn("publish failed", "err", err)
			return
		}
		m.published = true
		return
	}
	if err := m.client.Unpublish(); err != nil {
		m.log.Warn("unpublish failed", "err", err)
	}
	m.published = false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Layout):
		m.layout = m.layout.Next()
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Publish):
		m.publisher.Publishing = !m.publisher.Publishing
		m.syncPublish()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		if m.tracker.IsConnected() {
			return m, nil
		}
		m.leaving = false
		return m, m.connect()

	case key.Matches(msg, m.keys.Leave):
		if !m.tracker.IsConnected() {
			return m, nil
		}
		m.leaving = true
		if err := m.client.Disconnect(); err != nil {
			m.log.Warn("disconnect failed", "err", err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.leaving = true
	if m.tracker.IsConnected() {
		m.client.Disconnect()
	}
	m.unsub()
	m.cancel()
	return m, tea.Quit
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	return m.boundary.Render(m.width, m.renderTree)
}

func (m Model) renderTree() string {
	ctx := m.wrapper.Provide(m.ctx)
	ctx = room.WithLayout(ctx, m.layout)
	ctx = room.WithSubscriberCount(ctx, m.streams.Count())

	bar := m.statusBar
	bar.Session = m.tracker.Snapshot()
	bar.Subscribers = m.streams.Count()
	bar.Layout = m.layout
	bar.Publishing = m.publisher.Publishing

	sections := []string{bar.View()}
	if msg := m.tracker.ErrorMessage(); msg != "" {
		sections = append(sections, notice.View(msg, m.width))
	}
	// The notice stays above the overlay.
	if m.overlay == OverlayDebug {
		top := lipgloss.JoinVertical(lipgloss.Left, sections...)
		return lipgloss.JoinVertical(lipgloss.Left, top, m.debug.View(m.width, m.height-lipgloss.Height(top)))
	}

	sections = append(sections,
		video.PublisherView(m.publisher),
		video.StreamsView(ctx, m.streams.List(), m.width, m.tile),
		m.menu.View(m.keys.footer(), m.width),
	)
	if m.manifest == nil {
		sections = append(sections, theme.StyleDimmed.Render("  loading assets..."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
