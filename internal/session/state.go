// Package session owns the application's connection state. A single Tracker
// is the only source of truth for "are we connected"; every view and the
// session context value are derived from it.
package session

// ConnectionState is the tri-state view of a session connection.
type ConnectionState int

const (
	// Disconnected is the initial state and the state after a disconnect.
	Disconnected ConnectionState = iota

	// Connected means the session reported a successful connect.
	Connected

	// Errored means the session is not connected and an error was reported.
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// FailedToConnect is the user-facing message shown for any session error.
const FailedToConnect = "Failed to connect!"

// Snapshot is a consistent copy of the tracker's state.
type Snapshot struct {
	Connected bool
	// Observed is false until the first connect or disconnect event.
	Observed     bool
	State        ConnectionState
	ErrorMessage string
	Err          error
	// Changes counts propagated connection changes.
	Changes uint64
}

// Value is the session context value exposed to descendants. Connected is
// nil until the first connect or disconnect event.
type Value struct {
	Connected *bool
}

// IsConnected reports whether the value is known and true.
func (v Value) IsConnected() bool {
	return v.Connected != nil && *v.Connected
}

// Known reports whether any connect or disconnect event has been seen.
func (v Value) Known() bool {
	return v.Connected != nil
}

func deriveState(connected bool, errMsg string) ConnectionState {
	switch {
	case connected:
		return Connected
	case errMsg != "":
		return Errored
	default:
		return Disconnected
	}
}
