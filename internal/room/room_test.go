package room

import (
	"context"
	"testing"

	"github.com/videoroom/room/internal/sdk"
)

func ids(s *Streams) []string {
	var out []string
	for _, st := range s.List() {
		out = append(out, st.ID)
	}
	return out
}

func TestStreamsOrderAndIdempotentAdd(t *testing.T) {
	s := NewStreams()
	s.Add(sdk.Stream{ID: "a", Name: "ada"})
	s.Add(sdk.Stream{ID: "b"})
	s.Add(sdk.Stream{ID: "a", Name: "ada lovelace"})

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	got := ids(s)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("order = %v, want [a b]", got)
	}
	if s.List()[0].Name != "ada lovelace" {
		t.Errorf("replace did not update stream: %+v", s.List()[0])
	}
}

func TestStreamsRemove(t *testing.T) {
	s := NewStreams()
	s.Add(sdk.Stream{ID: "a"})
	s.Add(sdk.Stream{ID: "b"})
	s.Add(sdk.Stream{ID: "c"})

	if !s.Remove("b") {
		t.Error("Remove(b) = false, want true")
	}
	if s.Remove("b") {
		t.Error("second Remove(b) = true, want false")
	}
	got := ids(s)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("order = %v, want [a c]", got)
	}

	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count() after Clear = %d", s.Count())
	}
}

func TestLayoutCycle(t *testing.T) {
	l := LayoutGrid
	if l.Next() != LayoutSpeaker || l.Next().Next() != LayoutGrid {
		t.Error("layout should cycle grid -> speaker -> grid")
	}
	if LayoutSpeaker.String() != "speaker" || Layout(9).String() != "unknown" {
		t.Error("unexpected layout names")
	}
}

func TestContextLookups(t *testing.T) {
	ctx := context.Background()
	if SubscriberCount(ctx) != 0 || LayoutFrom(ctx) != LayoutGrid {
		t.Error("empty context should yield zero values")
	}
	ctx = WithLayout(WithSubscriberCount(ctx, 4), LayoutSpeaker)
	if SubscriberCount(ctx) != 4 {
		t.Errorf("SubscriberCount = %d, want 4", SubscriberCount(ctx))
	}
	if LayoutFrom(ctx) != LayoutSpeaker {
		t.Errorf("LayoutFrom = %v, want speaker", LayoutFrom(ctx))
	}
}
