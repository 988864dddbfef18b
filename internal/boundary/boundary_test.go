package boundary

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoroom/room/internal/logging"
)

func TestTryOK(t *testing.T) {
	res := Try(func() int { return 7 })
	assert.True(t, res.OK())
	assert.False(t, res.Failed())
	assert.Equal(t, 7, res.Value)
}

func TestTryPanicValues(t *testing.T) {
	tests := []struct {
		name    string
		panicV  any
		wantMsg string
	}{
		{"string", "boom", "boom"},
		{"error", errors.New("bad render"), "bad render"},
		{"int", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Try(func() string { panic(tt.panicV) })
			require.True(t, res.Failed())
			assert.EqualError(t, res.Err, tt.wantMsg)
			assert.NotEmpty(t, res.Stack)
		})
	}
}

func TestTryKeepsErrorIdentity(t *testing.T) {
	sentinel := errors.New("sentinel")
	res := Try(func() struct{} { panic(sentinel) })
	assert.ErrorIs(t, res.Err, sentinel)

	res = Try(func() struct{} { panic("not an error") })
	var pe *PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.Equal(t, "not an error", pe.Value)
}

func TestBoundaryHealthy(t *testing.T) {
	b := New(logging.Discard())
	out := b.Render(80, func() string { return "video grid" })
	assert.Equal(t, "video grid", out)
	assert.False(t, b.Failed())
	assert.NoError(t, b.Err())
}

func TestBoundaryCatchesDeepPanic(t *testing.T) {
	rec := logging.NewRecorder()
	b := New(rec.Logger())

	leaf := func() string { panic("boom") }
	child := func() string { return "child:" + leaf() }
	var siblingRendered bool
	sibling := func() string { siblingRendered = true; return "sibling" }

	out := b.Render(80, func() string {
		return child() + sibling()
	})

	assert.Contains(t, out, Heading)
	assert.Contains(t, out, "boom")
	assert.False(t, siblingRendered, "no other descendant renders after the failure")
	assert.True(t, b.Failed())
	assert.EqualError(t, b.Err(), "boom")

	r, ok := rec.Find("error caught by boundary")
	require.True(t, ok)
	assert.NotEmpty(t, r.Attrs["stack"])
}

func TestBoundaryIsTerminal(t *testing.T) {
	rec := logging.NewRecorder()
	b := New(rec.Logger())
	b.Render(80, func() string { panic("first") })

	calls := 0
	out := b.Render(80, func() string { calls++; return "recovered?" })

	assert.Equal(t, 0, calls, "failed subtree must not be rendered again")
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "recovered?")
	assert.Equal(t, 1, rec.Count("error caught by boundary"), "one log per catch")
}

func TestFallback(t *testing.T) {
	out := Fallback(errors.New("disk on fire"), 10)
	assert.True(t, strings.Contains(out, Heading))
	assert.Contains(t, out, "disk on fire")
}
