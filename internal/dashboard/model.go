// Package dashboard is the live terminal view over a poller registry. It
// only reads the store and history; all collection happens in the pollers.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/rackwatch/internal/config"
	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/poller"
	"github.com/rileyhilliard/rackwatch/internal/store"
)

// DefaultRefresh is how often the view re-reads the store when no tick
// notification arrives.
const DefaultRefresh = time.Second

// Options configures a Model.
type Options struct {
	// Refresh is the view's own redraw period.
	Refresh time.Duration
	// Temperature is config.UnitFahrenheit or config.UnitCelsius.
	Temperature string
	// History supplies sparklines and rates. Optional.
	History *store.History
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctx      context.Context
	registry *poller.Registry
	store    *store.Store
	history  *store.History
	refresh  time.Duration

	celsius  bool
	rows     []hostRow
	selected int
	width    int
	height   int

	spinner spinner.Model
	gauge   progress.Model

	lastUpdate time.Time
	notice     string
	noticeErr  bool
	busy       bool
	quitting   bool
}

// hostRow is what one card shows, read once per refresh.
type hostRow struct {
	host     config.Host
	state    poller.State
	loaded   bool
	entry    store.Entry
	lastErr  error
	rates    store.Rates
	hasRates bool
	cpu      []float64
}

// TickedMsg tells the model a poller finished a tick. Forward
// poller.Options.OnTick results into the program with Program.Send.
type TickedMsg poller.TickResult

type refreshMsg time.Time

// actionMsg reports the outcome of a key-triggered registry operation.
type actionMsg struct {
	text string
	err  error
}

// New creates a dashboard over reg. ctx bounds every connect and poll the
// dashboard starts.
func New(ctx context.Context, reg *poller.Registry, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}

	sp := spinner.New()
	sp.Spinner = PendingSpinner
	sp.Style = StatusConnectingStyle

	gauge := progress.New(
		progress.WithGradient(string(ColorHealthy), string(ColorCritical)),
		progress.WithoutPercentage(),
		progress.WithWidth(20),
	)

	m := Model{
		ctx:      ctx,
		registry: reg,
		store:    reg.Store(),
		history:  opts.History,
		refresh:  opts.Refresh,
		celsius:  opts.Temperature == config.UnitCelsius,
		spinner:  sp,
		gauge:    gauge,
	}
	m.reload()
	return m
}

// Init connects every host and starts the refresh and spinner timers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.lifecycleCmd(poller.Foreground),
		m.refreshCmd(),
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.FocusMsg:
		return m, m.lifecycleCmd(poller.Foreground)

	case tea.BlurMsg:
		return m, m.lifecycleCmd(poller.Background)

	case refreshMsg:
		m.reload()
		return m, m.refreshCmd()

	case TickedMsg:
		m.reload()
		m.lastUpdate = msg.Started.Add(msg.Duration)

	case actionMsg:
		m.busy = false
		m.notice = msg.text
		m.noticeErr = msg.err != nil
		if msg.err != nil {
			m.notice = rwerrors.Brief(msg.err)
		}
		m.reload()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Units):
		m.celsius = !m.celsius

	case key.Matches(msg, keys.Prev):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, keys.Next):
		if m.selected < len(m.rows)-1 {
			m.selected++
		}

	case key.Matches(msg, keys.Poll):
		return m.start(m.pollCmd())

	case key.Matches(msg, keys.Connect):
		return m.start(m.lifecycleCmd(poller.Foreground))

	case key.Matches(msg, keys.Disconnect):
		return m.start(m.lifecycleCmd(poller.Background))
	}
	return m, nil
}

// start runs cmd unless another registry operation is still running.
func (m Model) start(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.notice = ""
	return m, cmd
}

func (m Model) refreshCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) lifecycleCmd(ev poller.Event) tea.Cmd {
	reg, ctx := m.registry, m.ctx
	return func() tea.Msg {
		switch ev {
		case poller.Foreground:
			if err := reg.ConnectAll(ctx); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{text: "connected"}
		default:
			reg.DisconnectAll()
			return actionMsg{text: "disconnected"}
		}
	}
}

func (m Model) pollCmd() tea.Cmd {
	reg, ctx := m.registry, m.ctx
	return func() tea.Msg {
		results := reg.PollAll(ctx)
		failed := 0
		for _, r := range results {
			if !r.Complete() {
				failed++
			}
		}
		text := fmt.Sprintf("polled %d hosts", len(results))
		if failed > 0 {
			text += fmt.Sprintf(", %d incomplete", failed)
		}
		return actionMsg{text: text}
	}
}

// reload re-reads every visible host from the registry and store.
func (m *Model) reload() {
	pollers := m.registry.Pollers()
	rows := make([]hostRow, 0, len(pollers))
	for _, p := range pollers {
		h := p.Host()
		if !h.Visible() {
			continue
		}
		row := hostRow{
			host:    h,
			state:   p.State(),
			loaded:  p.Loaded(),
			lastErr: p.LastError(),
		}
		row.entry, _ = m.store.Get(h.ID)
		if run := p.LastRun(); run.After(m.lastUpdate) {
			m.lastUpdate = run
		}
		if m.history != nil {
			row.rates, row.hasRates = m.history.Rates(h.ID)
			row.cpu = m.history.CPUSeries(h.ID, store.DefaultHistorySize)
		}
		rows = append(rows, row)
	}
	m.rows = rows
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// ActiveCount returns how many visible hosts are being polled.
func (m Model) ActiveCount() int {
	n := 0
	for _, r := range m.rows {
		if r.state == poller.Active {
			n++
		}
	}
	return n
}

// SelectedHost returns the id of the selected host, or "".
func (m Model) SelectedHost() string {
	if m.selected >= 0 && m.selected < len(m.rows) {
		return m.rows[m.selected].host.ID
	}
	return ""
}

// Celsius reports whether temperatures are shown in Celsius.
func (m Model) Celsius() bool {
	return m.celsius
}
