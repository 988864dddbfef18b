package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoroom/room/internal/logging"
)

func newTestTracker(t *testing.T) (*Tracker, *logging.Recorder) {
	t.Helper()
	rec := logging.NewRecorder()
	return NewTracker(rec.Logger()), rec
}

func TestTrackerDefaults(t *testing.T) {
	tr, _ := newTestTracker(t)
	snap := tr.Snapshot()
	assert.False(t, snap.Connected)
	assert.False(t, snap.Observed)
	assert.Equal(t, Disconnected, snap.State)
	assert.Empty(t, snap.ErrorMessage)
	assert.False(t, tr.Value().Known())
}

func TestTrackerConnected(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Connected()

	assert.True(t, tr.IsConnected())
	assert.Equal(t, Connected, tr.Snapshot().State)
	assert.Empty(t, tr.ErrorMessage(), "no error notice after a clean connect")
	assert.True(t, tr.Value().IsConnected())
}

func TestTrackerErrorLeavesFlag(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Tracker)
		want    bool
	}{
		{"default", func(*Tracker) {}, false},
		{"after connect", func(tr *Tracker) { tr.Connected() }, true},
		{"after disconnect", func(tr *Tracker) { tr.Connected(); tr.Disconnected() }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, rec := newTestTracker(t)
			tt.prepare(tr)
			before := tr.Snapshot()

			tr.Error(errors.New("network down"))

			after := tr.Snapshot()
			assert.Equal(t, tt.want, after.Connected)
			assert.Equal(t, before.Connected, after.Connected)
			assert.Equal(t, before.Changes, after.Changes)
			assert.Equal(t, FailedToConnect, after.ErrorMessage)
			assert.EqualError(t, after.Err, "network down")

			r, ok := rec.Find("session error")
			require.True(t, ok, "error must be logged")
			assert.EqualError(t, r.Attrs["err"].(error), "network down")
		})
	}
}

func TestTrackerErroredState(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Error(errors.New("boom"))
	assert.Equal(t, Errored, tr.Snapshot().State)

	tr.Connected()
	assert.Equal(t, Connected, tr.Snapshot().State)

	tr.Disconnected()
	assert.Equal(t, Errored, tr.Snapshot().State, "the error message is never cleared")
}

func TestTrackerConnectThenDisconnect(t *testing.T) {
	tr, rec := newTestTracker(t)
	var seen []bool
	tr.Subscribe(func(s Snapshot) { seen = append(seen, s.Connected) })

	tr.Connected()
	tr.Disconnected()

	assert.False(t, tr.IsConnected())
	assert.Equal(t, []bool{true, false}, seen)
	assert.Equal(t, uint64(2), tr.Snapshot().Changes)
	assert.Equal(t, 2, rec.Count("connection changed"))
}

func TestTrackerRedundantEvents(t *testing.T) {
	tr, rec := newTestTracker(t)
	var calls int
	tr.Subscribe(func(Snapshot) { calls++ })

	tr.Disconnected() // already false
	tr.Connected()
	tr.Connected()
	tr.Connected()
	tr.Disconnected()
	tr.Disconnected()

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, rec.Count("connection changed"))
}

func TestTrackerFirstDisconnectIsObserved(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Disconnected()

	v := tr.Value()
	require.True(t, v.Known())
	assert.False(t, v.IsConnected())
	assert.Equal(t, uint64(0), tr.Snapshot().Changes)
}

func TestTrackerLastWriteWins(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		tr, _ := newTestTracker(t)
		var propagated int
		tr.Subscribe(func(Snapshot) { propagated++ })

		n := rng.Intn(20) + 1
		last, prev := false, false
		flips := 0
		for j := 0; j < n; j++ {
			if rng.Intn(2) == 0 {
				tr.Connected()
				last = true
			} else {
				tr.Disconnected()
				last = false
			}
			if last != prev {
				flips++
			}
			prev = last
		}

		require.Equal(t, last, tr.IsConnected(), "run %d", i)
		require.Equal(t, flips, propagated, "run %d", i)
		require.Equal(t, last, tr.Value().IsConnected(), "value and flag must agree")
	}
}

func TestTrackerUnsubscribe(t *testing.T) {
	tr, _ := newTestTracker(t)
	var a, b int
	unsubA := tr.Subscribe(func(Snapshot) { a++ })
	tr.Subscribe(func(Snapshot) { b++ })

	tr.Connected()
	unsubA()
	tr.Disconnected()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestTrackerConcurrentEvents(t *testing.T) {
	tr, _ := newTestTracker(t)
	var mu sync.Mutex
	var seen []bool
	tr.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Connected)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.Connected()
			} else {
				tr.Disconnected()
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	// Propagated values must alternate: each propagation is a real change.
	for i := 1; i < len(seen); i++ {
		assert.NotEqual(t, seen[i-1], seen[i], "propagation %d repeats the previous value", i)
	}
	if len(seen) > 0 {
		assert.Equal(t, seen[len(seen)-1], tr.IsConnected())
	}
}

func TestContextValue(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	tr, _ := newTestTracker(t)
	tr.Connected()
	ctx := NewContext(context.Background(), tr.Value())

	v, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, v.IsConnected())
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "unknown", ConnectionState(99).String())
}
