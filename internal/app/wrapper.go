package app

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/videoroom/room/internal/sdk"
	"github.com/videoroom/room/internal/session"
)

// Wrapper adapts session lifecycle messages from the SDK into tracker
// updates and exposes the resulting session value to the views below it.
// It keeps no connection state of its own.
type Wrapper struct {
	tracker *session.Tracker
	log     *slog.Logger
}

// NewWrapper creates a wrapper for a session joined with creds. Incomplete
// credentials are only logged; the server reports the real failure.
func NewWrapper(creds sdk.Credentials, tracker *session.Tracker, log *slog.Logger) *Wrapper {
	w := &Wrapper{tracker: tracker, log: log.With("component", "wrapper")}
	if err := creds.Validate(); err != nil {
		w.log.Warn("credentials look incomplete", "err", err)
	}
	return w
}

// Handle applies a lifecycle message. It reports whether msg was one.
func (w *Wrapper) Handle(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case sdk.SessionConnectedMsg:
		w.tracker.Connected()
	case sdk.SessionDisconnectedMsg:
		if msg.Err != nil && !msg.Requested {
			w.log.Info("session dropped", "err", msg.Err)
		}
		w.tracker.Disconnected()
	case sdk.SessionErrorMsg:
		w.tracker.Error(msg.Err)
		if msg.RetryIn > 0 {
			w.log.Info("reconnect scheduled", "retry_in", msg.RetryIn)
		}
	default:
		return false
	}
	return true
}

// Provide returns ctx with the current session value attached.
func (w *Wrapper) Provide(ctx context.Context) context.Context {
	return session.NewContext(ctx, w.tracker.Value())
}
