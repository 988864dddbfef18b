package server

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/videoroom/room/internal/sdk"
)

type peer struct {
	id   string
	name string
	conn *websocket.Conn
	done chan struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newPeer(conn *websocket.Conn, name string) *peer {
	p := &peer{
		id:   uuid.NewString(),
		name: name,
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	if conn != nil {
		go p.writePump()
	}
	return p
}

func (p *peer) writePump() {
	defer close(p.done)
	defer p.conn.Close()
	// Drains until close() closes the channel.
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// trySend queues data without blocking. It reports false if the peer is
// closed or its queue is full.
func (p *peer) trySend(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// Hub tracks the peers connected to the session and the streams they
// publish, and fans stream changes out to every other peer.
type Hub struct {
	sessionID string
	log       *slog.Logger

	mu      sync.RWMutex
	peers   map[string]*peer
	streams map[string]sdk.Stream
	owners  map[string]string // stream id -> connection id
	seq     uint64
}

func NewHub(sessionID string, log *slog.Logger) *Hub {
	return &Hub{
		sessionID: sessionID,
		log:       log.With("component", "hub"),
		peers:     make(map[string]*peer),
		streams:   make(map[string]sdk.Stream),
		owners:    make(map[string]string),
	}
}

// Join registers conn as a peer, acknowledges the connect and replays the
// current streams to it.
func (h *Hub) Join(conn *websocket.Conn, name string) *peer {
	p := newPeer(conn, name)

	h.mu.Lock()
	h.peers[p.id] = p
	existing := h.sortedStreamsLocked()
	ack := h.encodeLocked(sdk.MsgSessionConnected, sdk.SessionConnectedPayload{
		SessionID:    h.sessionID,
		ConnectionID: p.id,
	})
	replay := make([][]byte, 0, len(existing))
	for _, st := range existing {
		replay = append(replay, h.encodeLocked(sdk.MsgStreamCreated, sdk.StreamCreatedPayload{Stream: st}))
	}
	h.mu.Unlock()

	h.log.Info("peer joined", "connection_id", p.id, "name", name)
	h.deliver(p, ack)
	for _, data := range replay {
		h.deliver(p, data)
	}
	return p
}

// Leave removes the peer and destroys every stream it published.
func (h *Hub) Leave(p *peer) {
	h.mu.Lock()
	if _, ok := h.peers[p.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, p.id)
	var gone []string
	for id, owner := range h.owners {
		if owner == p.id {
			gone = append(gone, id)
		}
	}
	h.mu.Unlock()

	p.close()
	sort.Strings(gone)
	for _, id := range gone {
		h.RemoveStream(id, "clientDisconnected")
	}
	h.log.Info("peer left", "connection_id", p.id)
}

// Close drops every peer. Used on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		h.Leave(p)
	}
}

// Publish creates a stream owned by p and announces it to the other peers.
func (h *Hub) Publish(p *peer, req sdk.PublishPayload) sdk.Stream {
	name := req.Name
	if name == "" {
		name = p.name
	}
	st := sdk.Stream{
		ID:           uuid.NewString(),
		ConnectionID: p.id,
		Name:         name,
		HasVideo:     req.HasVideo,
		HasAudio:     req.HasAudio,
		CreatedAt:    time.Now(),
	}
	h.addStream(st, p.id)
	return st
}

// Unpublish destroys every stream owned by p.
func (h *Hub) Unpublish(p *peer) {
	h.mu.RLock()
	var ids []string
	for id, owner := range h.owners {
		if owner == p.id {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		h.RemoveStream(id, "unpublished")
	}
}

// AddStream announces a stream that has no connected owner. The mock
// participants use it.
func (h *Hub) AddStream(st sdk.Stream) {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	h.addStream(st, st.ConnectionID)
}

func (h *Hub) addStream(st sdk.Stream, owner string) {
	h.mu.Lock()
	h.streams[st.ID] = st
	h.owners[st.ID] = owner
	data := h.encodeLocked(sdk.MsgStreamCreated, sdk.StreamCreatedPayload{Stream: st})
	h.mu.Unlock()

	h.log.Debug("stream created", "stream_id", st.ID, "name", st.Name)
	h.broadcast(data, owner)
}

// RemoveStream destroys a stream and tells every peer except its owner.
func (h *Hub) RemoveStream(id, reason string) {
	h.mu.Lock()
	if _, ok := h.streams[id]; !ok {
		h.mu.Unlock()
		return
	}
	owner := h.owners[id]
	delete(h.streams, id)
	delete(h.owners, id)
	data := h.encodeLocked(sdk.MsgStreamDestroyed, sdk.StreamDestroyedPayload{StreamID: id, Reason: reason})
	h.mu.Unlock()

	h.log.Debug("stream destroyed", "stream_id", id, "reason", reason)
	h.broadcast(data, owner)
}

func (h *Hub) encodeLocked(t sdk.MessageType, payload any) []byte {
	h.seq++
	data, err := sdk.Encode(t, h.seq, payload)
	if err != nil {
		h.log.Error("encode frame", "type", t, "err", err)
		return nil
	}
	return data
}

func (h *Hub) broadcast(data []byte, except string) {
	if data == nil {
		return
	}
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != except {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range peers {
		h.deliver(p, data)
	}
}

func (h *Hub) deliver(p *peer, data []byte) {
	if data == nil {
		return
	}
	if !p.trySend(data) {
		// Peer can't keep up, disconnect it.
		h.log.Warn("peer too slow, disconnecting", "connection_id", p.id)
		go h.Leave(p)
	}
}

func (h *Hub) sortedStreamsLocked() []sdk.Stream {
	out := make([]sdk.Stream, 0, len(h.streams))
	for _, st := range h.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Streams returns the current streams in creation order.
func (h *Hub) Streams() []sdk.Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sortedStreamsLocked()
}

func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) StreamCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// sendError writes an error frame directly to a connection that has not
// joined the hub yet.
func sendError(conn *websocket.Conn, code, message string) error {
	data, err := sdk.Encode(sdk.MsgError, 0, sdk.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
