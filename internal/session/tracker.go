package session

import (
	"log/slog"
	"sync"
)

type listener struct {
	id uint64
	fn func(Snapshot)
}

// Tracker holds the connection flag for the whole application. Connect and
// disconnect events set it; a change-detection pass after each update
// propagates the new value to subscribers only when it differs from the
// last propagated value. Errors are recorded separately and never change
// the flag.
type Tracker struct {
	log *slog.Logger

	mu        sync.Mutex
	connected bool
	observed  bool
	lastSeen  bool
	errMsg    string
	err       error
	changes   uint64
	listeners []listener
	nextID    uint64

	// dispatchMu serializes event handling so listeners see changes in the
	// order the events arrived.
	dispatchMu sync.Mutex
}

// NewTracker returns a tracker in the disconnected state.
func NewTracker(log *slog.Logger) *Tracker {
	return &Tracker{log: log.With("component", "session")}
}

// Connected records a session-connected event.
func (t *Tracker) Connected() {
	t.set(true)
}

// Disconnected records a session-disconnected event.
func (t *Tracker) Disconnected() {
	t.set(false)
}

// Error records a session error. The connection flag is left untouched; an
// error only implies a disconnect if the session also reports one.
func (t *Tracker) Error(err error) {
	t.mu.Lock()
	t.errMsg = FailedToConnect
	t.err = err
	t.mu.Unlock()

	t.log.Error("session error", "err", err)
}

func (t *Tracker) set(connected bool) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	t.connected = connected
	t.observed = true
	if t.lastSeen == connected {
		t.mu.Unlock()
		return
	}
	t.lastSeen = connected
	t.changes++
	snap := t.snapshotLocked()
	fns := make([]func(Snapshot), len(t.listeners))
	for i, l := range t.listeners {
		fns[i] = l.fn
	}
	t.mu.Unlock()

	t.log.Info("connection changed", "isConnected", connected)
	for _, fn := range fns {
		fn(snap)
	}
}

// Subscribe registers fn to be called with a snapshot after every
// propagated change. It returns a function that removes the subscription.
// fn must not call back into Connected or Disconnected.
func (t *Tracker) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Connected:    t.connected,
		Observed:     t.observed,
		State:        deriveState(t.connected, t.errMsg),
		ErrorMessage: t.errMsg,
		Err:          t.err,
		Changes:      t.changes,
	}
}

// Value returns the session context value derived from the same state as
// Snapshot, so the two can never disagree.
func (t *Tracker) Value() Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.observed {
		return Value{}
	}
	c := t.connected
	return Value{Connected: &c}
}

// IsConnected reports the current connection flag.
func (t *Tracker) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// ErrorMessage returns the user-facing error message, or "" if none.
func (t *Tracker) ErrorMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}
