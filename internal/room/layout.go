package room

import "context"

// Layout selects how video tiles are arranged.
type Layout int

const (
	// LayoutGrid shows every tile at the same size.
	LayoutGrid Layout = iota
	// LayoutSpeaker shows the first remote stream large and the rest in a strip.
	LayoutSpeaker
)

func (l Layout) String() string {
	switch l {
	case LayoutGrid:
		return "grid"
	case LayoutSpeaker:
		return "speaker"
	default:
		return "unknown"
	}
}

// Next cycles to the following layout.
func (l Layout) Next() Layout {
	return (l + 1) % 2
}

type layoutKey struct{}

// WithLayout returns a copy of ctx carrying l.
func WithLayout(ctx context.Context, l Layout) context.Context {
	return context.WithValue(ctx, layoutKey{}, l)
}

// LayoutFrom returns the layout stored in ctx, defaulting to LayoutGrid.
func LayoutFrom(ctx context.Context) Layout {
	l, _ := ctx.Value(layoutKey{}).(Layout)
	return l
}
