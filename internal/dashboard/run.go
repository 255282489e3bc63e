package dashboard

import (
	"io"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/rackwatch/internal/poller"
)

// Notifier forwards poller ticks into a running program. Its OnTick is
// meant for poller.Options.OnTick and is a no-op until Run attaches.
type Notifier struct {
	program atomic.Pointer[tea.Program]
}

// OnTick sends r to the attached program, if any.
func (n *Notifier) OnTick(r poller.TickResult) {
	if p := n.program.Load(); p != nil {
		p.Send(TickedMsg(r))
	}
}

// Run shows the dashboard full-screen until the user quits. Focus reporting
// is enabled so switching away from the terminal disconnects every host
// and switching back reconnects them.
func Run(m Model, n *Notifier, in io.Reader, out io.Writer) error {
	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	p := tea.NewProgram(m, opts...)
	if n != nil {
		n.program.Store(p)
		defer n.program.Store(nil)
	}
	_, err := p.Run()
	return err
}
