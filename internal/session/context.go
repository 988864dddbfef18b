package session

import "context"

type valueKey struct{}

// NewContext returns a copy of ctx carrying v. Descendants read it with
// FromContext; there is no way to change it through the context.
func NewContext(ctx context.Context, v Value) context.Context {
	return context.WithValue(ctx, valueKey{}, v)
}

// FromContext returns the session value stored in ctx, if any.
func FromContext(ctx context.Context) (Value, bool) {
	v, ok := ctx.Value(valueKey{}).(Value)
	return v, ok
}
