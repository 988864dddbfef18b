// Package boundary guards render steps. A failing step is captured into a
// tagged result instead of unwinding the whole program, and a Boundary
// swaps its subtree for a fixed fallback view once a step has failed.
package boundary

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/videoroom/room/internal/theme"
)

// Heading is the fixed title of the fallback view.
const Heading = "Something went wrong."

// PanicError wraps a recovered panic value that was not an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

// Result is the outcome of a guarded step: either a value or an error.
type Result[T any] struct {
	Value T
	Err   error
	Stack []byte
}

func (r Result[T]) OK() bool     { return r.Err == nil }
func (r Result[T]) Failed() bool { return r.Err != nil }

// Try runs fn and captures a panic into a failed Result.
func Try[T any](fn func() T) (res Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			stack := debug.Stack()
			res.Stack = stack
			if err, ok := v.(error); ok {
				res.Err = err
				return
			}
			res.Err = &PanicError{Value: v, Stack: stack}
		}
	}()
	return Result[T]{Value: fn()}
}

// Boundary renders a subtree until the first failure, then renders only the
// fallback. There is no transition back to healthy.
type Boundary struct {
	log *slog.Logger

	mu     sync.Mutex
	failed bool
	err    error
}

func New(log *slog.Logger) *Boundary {
	return &Boundary{log: log.With("component", "boundary")}
}

// Render runs view unless the boundary has already failed. Only failures
// inside view are captured; event handlers and background commands are not
// covered.
func (b *Boundary) Render(width int, view func() string) string {
	b.mu.Lock()
	if b.failed {
		err := b.err
		b.mu.Unlock()
		return Fallback(err, width)
	}
	b.mu.Unlock()

	res := Try(view)
	if res.OK() {
		return res.Value
	}

	b.mu.Lock()
	b.failed = true
	b.err = res.Err
	b.mu.Unlock()

	b.log.Error("error caught by boundary", "err", res.Err, "stack", string(res.Stack))
	return Fallback(res.Err, width)
}

// Failed reports whether a render step has failed.
func (b *Boundary) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Err returns the captured error, or nil while healthy.
func (b *Boundary) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Fallback renders the heading and the error message.
func Fallback(err error, width int) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if width < 30 {
		width = 30
	}
	title := theme.StyleError.Render(Heading)
	body := lipgloss.NewStyle().Foreground(theme.ColorBright).Render(msg)
	return lipgloss.NewStyle().
		Width(width-4).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorDanger).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body))
}
