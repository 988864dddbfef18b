package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoroom/room/internal/logging"
	"github.com/videoroom/room/internal/sdk"
)

// drain decodes every frame queued for p without a connection attached.
func drain(t *testing.T, p *peer) []sdk.Message {
	t.Helper()
	var out []sdk.Message
	for {
		select {
		case data, ok := <-p.send:
			if !ok {
				return out
			}
			var msg sdk.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []sdk.Message) []sdk.MessageType {
	out := make([]sdk.MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestHubJoinAck(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	p := hub.Join(nil, "alice")

	msgs := drain(t, p)
	require.Len(t, msgs, 1)
	assert.Equal(t, sdk.MsgSessionConnected, msgs[0].Type)
	assert.Equal(t, 1, hub.PeerCount())
}

func TestHubPublishSkipsOwner(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	a := hub.Join(nil, "alice")
	b := hub.Join(nil, "bob")
	drain(t, a)
	drain(t, b)

	st := hub.Publish(a, sdk.PublishPayload{Name: "cam", HasVideo: true})
	assert.Equal(t, "cam", st.Name)
	assert.Equal(t, a.id, st.ConnectionID)

	assert.Empty(t, drain(t, a))
	assert.Equal(t, []sdk.MessageType{sdk.MsgStreamCreated}, types(drain(t, b)))
}

func TestHubLeaveDestroysStreams(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	a := hub.Join(nil, "alice")
	b := hub.Join(nil, "bob")
	hub.Publish(a, sdk.PublishPayload{})
	hub.Publish(a, sdk.PublishPayload{})
	drain(t, b)

	hub.Leave(a)
	assert.Equal(t, 0, hub.StreamCount())
	assert.Equal(t, []sdk.MessageType{sdk.MsgStreamDestroyed, sdk.MsgStreamDestroyed}, types(drain(t, b)))

	// Leaving twice is a no-op.
	hub.Leave(a)
	assert.Equal(t, 1, hub.PeerCount())
}

func TestHubUnpublish(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	a := hub.Join(nil, "alice")
	hub.Publish(a, sdk.PublishPayload{})
	hub.AddStream(sdk.Stream{ID: "mock-1", ConnectionID: "mock"})

	hub.Unpublish(a)
	streams := hub.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, "mock-1", streams[0].ID)
}

func TestHubStreamsOrdered(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	now := time.Now()
	hub.AddStream(sdk.Stream{ID: "b", CreatedAt: now.Add(time.Second)})
	hub.AddStream(sdk.Stream{ID: "a", CreatedAt: now})
	hub.AddStream(sdk.Stream{ID: "c", CreatedAt: now})

	var ids []string
	for _, st := range hub.Streams() {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}

func TestHubSeqIncreases(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	p := hub.Join(nil, "alice")
	hub.AddStream(sdk.Stream{ID: "s1"})
	hub.RemoveStream("s1", "gone")
	hub.RemoveStream("s1", "gone") // unknown stream, no frame

	msgs := drain(t, p)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Seq, msgs[i-1].Seq)
	}
}

func TestHubSlowPeerDropped(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	hub.Join(nil, "slow")
	for i := 0; i < 100; i++ {
		hub.AddStream(sdk.Stream{ID: string(rune('a' + i%26)) + string(rune('0'+i/26))})
	}
	assert.Eventually(t, func() bool { return hub.PeerCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubClose(t *testing.T) {
	hub := NewHub("sess", logging.Discard())
	hub.Join(nil, "a")
	hub.Join(nil, "b")
	hub.Close()
	assert.Equal(t, 0, hub.PeerCount())
}
