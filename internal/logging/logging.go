// Package logging builds the structured logger shared by the client and the
// development server. Components never log through a global; they receive a
// *slog.Logger from their constructor.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/videoroom/room/internal/config"
)

// New returns a logger writing to w in the configured format and level.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Sink receives a flattened copy of every record that passes a Tee handler.
type Sink func(t time.Time, level slog.Level, line string)

// Tee forwards records to the wrapped handler and to a sink. Attributes
// under groups reach the sink with dotted keys, as the text handler
// prints them.
type Tee struct {
	slog.Handler
	sink   Sink
	attrs  []slog.Attr // already qualified
	prefix string      // open groups, "a.b."
}

// NewTee wraps h so that every handled record is also passed to sink.
func NewTee(h slog.Handler, sink Sink) *Tee {
	return &Tee{Handler: h, sink: sink}
}

func (t *Tee) Handle(ctx context.Context, r slog.Record) error {
	if t.sink != nil {
		t.sink(r.Time, r.Level, t.flatten(r))
	}
	return t.Handler.Handle(ctx, r)
}

func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(t.attrs)+len(attrs))
	merged = append(merged, t.attrs...)
	for _, a := range attrs {
		merged = appendQualified(merged, t.prefix, a)
	}
	return &Tee{Handler: t.Handler.WithAttrs(attrs), sink: t.sink, attrs: merged, prefix: t.prefix}
}

func (t *Tee) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return &Tee{Handler: t.Handler.WithGroup(name), sink: t.sink, attrs: t.attrs, prefix: t.prefix + name + "."}
}

// appendQualified resolves a, expands groups and prefixes every key.
func appendQualified(dst []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			dst = appendQualified(dst, inner, g)
		}
		return dst
	}
	if a.Equal(slog.Attr{}) {
		return dst
	}
	a.Key = prefix + a.Key
	return append(dst, a)
}

func (t *Tee) flatten(r slog.Record) string {
	attrs := t.attrs
	if r.NumAttrs() > 0 {
		attrs = append(make([]slog.Attr, 0, len(t.attrs)+r.NumAttrs()), t.attrs...)
		r.Attrs(func(a slog.Attr) bool {
			attrs = appendQualified(attrs, t.prefix, a)
			return true
		})
	}

	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range attrs {
		if a.Key == "stack" || strings.HasSuffix(a.Key, ".stack") {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
	}
	return b.String()
}
