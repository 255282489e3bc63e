package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	Poll       key.Binding
	Connect    key.Binding
	Disconnect key.Binding
	Units      key.Binding
	Prev       key.Binding
	Next       key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Poll: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "poll now"),
	),
	Connect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect all"),
	),
	Disconnect: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "disconnect all"),
	),
	Units: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "°F/°C"),
	),
	Prev: key.NewBinding(
		key.WithKeys("up", "k", "left", "h"),
		key.WithHelp("↑↓", "select"),
	),
	Next: key.NewBinding(
		key.WithKeys("down", "j", "right", "l"),
	),
}

// footerKeys are the bindings listed in the footer, in order.
func (k keyMap) footerKeys() []key.Binding {
	return []key.Binding{k.Quit, k.Poll, k.Connect, k.Disconnect, k.Units, k.Prev}
}
