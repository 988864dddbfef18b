package menu

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func TestView(t *testing.T) {
	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "layout")),
	}
	v := New().View(bindings, 80)
	for _, want := range []string{"quit", "layout"} {
		if !strings.Contains(v, want) {
			t.Errorf("menu missing %q: %s", want, v)
		}
	}
}

func TestViewSkipsDisabled(t *testing.T) {
	off := key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish"))
	off.SetEnabled(false)
	v := New().View([]key.Binding{off}, 80)
	if strings.Contains(v, "publish") {
		t.Errorf("disabled binding rendered: %s", v)
	}
}
