// Package room holds the state shared across the video views: the remote
// streams the client is subscribed to and the active video layout. Both are
// exposed to views through context lookups.
package room

import (
	"context"

	"github.com/videoroom/room/internal/sdk"
)

// Streams is the ordered set of remote streams. Order is arrival order.
type Streams struct {
	byID  map[string]sdk.Stream
	order []string
}

func NewStreams() *Streams {
	return &Streams{byID: make(map[string]sdk.Stream)}
}

// Add inserts or replaces a stream. Replacing keeps the original position.
func (s *Streams) Add(st sdk.Stream) {
	if _, ok := s.byID[st.ID]; !ok {
		s.order = append(s.order, st.ID)
	}
	s.byID[st.ID] = st
}

// Remove drops a stream. It reports whether the stream was present.
func (s *Streams) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops every stream, e.g. after the session disconnects.
func (s *Streams) Clear() {
	s.byID = make(map[string]sdk.Stream)
	s.order = nil
}

func (s *Streams) Count() int {
	return len(s.order)
}

// List returns the streams in arrival order.
func (s *Streams) List() []sdk.Stream {
	out := make([]sdk.Stream, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

type subscriberCountKey struct{}

// WithSubscriberCount returns a copy of ctx carrying n.
func WithSubscriberCount(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, subscriberCountKey{}, n)
}

// SubscriberCount returns the subscriber count stored in ctx, or 0.
func SubscriberCount(ctx context.Context) int {
	n, _ := ctx.Value(subscriberCountKey{}).(int)
	return n
}
