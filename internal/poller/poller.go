// Package poller drives periodic metric collection for configured hosts.
//
// A Poller owns one host's session. While active it runs the fixed command
// batch on a timer, parses each command's output and writes the resulting
// fields into the shared store. Commands run one at a time; a failed
// command leaves its fields at their previous values and the rest of the
// batch carries on.
//
// The Registry keeps one Poller per configured host and fans connect,
// disconnect and poll operations out across them.
package poller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/metrics"
	"github.com/rileyhilliard/rackwatch/internal/session"
	"github.com/rileyhilliard/rackwatch/internal/store"
)

// DefaultInterval is the tick period when Options.Interval is zero.
const DefaultInterval = 2 * time.Second

// Session is the remote command channel a Poller drives. *session.Session
// satisfies it.
type Session interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string) (string, error)
	Disconnect() error
	State() session.State
}

// State is the lifecycle state of a Poller.
type State int

const (
	Idle State = iota
	Connecting
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// TickResult summarizes one run of the command batch.
type TickResult struct {
	HostID   string        `json:"hostId"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	// Failed lists the names of commands that returned an error.
	Failed []string `json:"failed"`
	// Disconnected is set when the session was gone by the end of the tick.
	Disconnected bool `json:"disconnected"`
}

// Complete reports whether every command succeeded.
func (r TickResult) Complete() bool {
	return len(r.Failed) == 0
}

// Options configures a Poller.
type Options struct {
	// Interval between ticks.
	Interval time.Duration
	Logger   logger.Logger
	// History, when set, receives a sample after every tick that produced
	// at least one reading.
	History *store.History
	// OnTick is called after every tick, from the goroutine that ran it.
	OnTick func(TickResult)
}

// applier writes one command's parsed output into an entry.
type applier func(e *store.Entry, output string)

var appliers = map[string]applier{
	metrics.CmdTemperature.Name: func(e *store.Entry, out string) { e.SetTemperature(metrics.ParseTemperature(out)) },
	metrics.CmdTopSummary.Name:  func(e *store.Entry, out string) { e.SetLoad(metrics.ParseLoad(out)) },
	metrics.CmdCPUCores.Name:    func(e *store.Entry, out string) { e.SetCores(metrics.ParseCores(out)) },
	metrics.CmdCPUTotals.Name:   func(e *store.Entry, out string) { e.SetCPUTotals(metrics.ParseCPUTotals(out)) },
	metrics.CmdTasks.Name:       func(e *store.Entry, out string) { e.SetTasks(metrics.ParseTasks(out)) },
	metrics.CmdMemory.Name:      func(e *store.Entry, out string) { e.SetMemory(metrics.ParseMemory(out)) },
	metrics.CmdSwap.Name:        func(e *store.Entry, out string) { e.SetSwap(metrics.ParseSwap(out)) },
	metrics.CmdNetwork.Name:     func(e *store.Entry, out string) { e.SetNetwork(metrics.ParseNetwork(out)) },
	metrics.CmdDiskFree.Name:    func(e *store.Entry, out string) { e.SetMounts(metrics.ParseDiskFree(out)) },
	metrics.CmdDiskStats.Name:   func(e *store.Entry, out string) { e.SetDeviceIO(metrics.ParseDiskStats(out)) },
}

// Poller collects metrics for one host.
type Poller struct {
	sess  Session
	store *store.Store
	opts  Options
	log   logger.Logger

	// lifeMu serializes Connect and Disconnect.
	lifeMu sync.Mutex
	// tickMu keeps one tick in flight.
	tickMu sync.Mutex

	mu      sync.Mutex
	host    config.Host
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	lastRun time.Time
}

// New creates an idle poller for host.
func New(host config.Host, sess Session, st *store.Store, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[poller]")
	}
	return &Poller{
		host:  host,
		sess:  sess,
		store: st,
		opts:  opts,
		log:   log,
	}
}

// ID returns the host id the poller writes under.
func (p *Poller) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host.ID
}

// Host returns the host configuration.
func (p *Poller) Host() config.Host {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

// setHost replaces display attributes such as name and order. Connection
// attributes are never changed on a live poller.
func (p *Poller) setHost(h config.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = h
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Loaded reports whether a full tick has ever succeeded.
func (p *Poller) Loaded() bool {
	return p.store.Loaded(p.ID())
}

// LastError returns the most recent connect or command error, or nil.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LastRun returns when the last tick started.
func (p *Poller) LastRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

// Connect opens the session and starts ticking: once straight away, then
// every interval. Connecting an active poller is a no-op.
func (p *Poller) Connect(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	if p.state == Active {
		p.mu.Unlock()
		return nil
	}
	p.state = Connecting
	label := p.host.Label()
	p.mu.Unlock()

	if err := p.sess.Connect(ctx); err != nil {
		p.mu.Lock()
		p.state = Idle
		p.lastErr = err
		p.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.state = Active
	p.lastErr = nil
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.log.Debug("%s: polling every %s", label, p.opts.Interval)
	go p.run(loopCtx, cancel, done)
	return nil
}

// Disconnect stops the timer, waits for a tick already in flight to finish
// on its own, then closes the session. It is safe on an idle poller.
func (p *Poller) Disconnect() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.state = Idle
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return p.sess.Disconnect()
}

// PollNow runs one tick synchronously. The poller must be active.
func (p *Poller) PollNow(ctx context.Context) (TickResult, error) {
	if p.State() != Active {
		return TickResult{}, errors.NotConnected(p.Host().Label())
	}
	res := p.tick(ctx)
	if res.Disconnected {
		p.stopSelf(nil)
	}
	return res, nil
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	// Ticks are not aborted by cancellation; only scheduling stops.
	tickCtx := context.WithoutCancel(ctx)

	for {
		if res := p.tick(tickCtx); res.Disconnected {
			p.stopSelf(done)
			cancel()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// stopSelf returns the poller to idle after its session dropped. done
// identifies the loop asking; a loop that was already replaced or stopped
// leaves the state alone. A nil done stops whatever loop is current.
func (p *Poller) stopSelf(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done != nil && p.done != done {
		return
	}
	if p.cancel != nil && done == nil {
		p.cancel()
	}
	p.cancel, p.done = nil, nil
	if p.state == Active {
		p.state = Idle
		p.log.Warn("%s: session lost, polling stopped until the next connect", p.host.Label())
	}
}

// tick runs the command batch once and writes every successful result.
func (p *Poller) tick(ctx context.Context) TickResult {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	host := p.Host()
	res := TickResult{HostID: host.ID, Started: time.Now()}

	p.mu.Lock()
	p.lastRun = res.Started
	p.mu.Unlock()

	wrote := false
	var lastErr error
	for _, cmd := range metrics.PollOrder {
		out, err := p.sess.Execute(ctx, cmd.Script)
		if err != nil {
			res.Failed = append(res.Failed, cmd.Name)
			lastErr = err
			p.log.Debug("%s: %s failed: %s", host.Label(), cmd.Name, errors.Brief(err))
			continue
		}
		if strings.TrimSpace(out) == "" {
			p.log.Debug("%s: %s returned no output, using defaults", host.Label(), cmd.Name)
		}
		apply := appliers[cmd.Name]
		p.store.Update(host.ID, func(e *store.Entry) { apply(e, out) })
		wrote = true
	}

	if res.Complete() {
		p.store.MarkLoaded(host.ID)
	}
	res.Duration = time.Since(res.Started)
	res.Disconnected = p.sess.State() == session.Disconnected

	p.mu.Lock()
	p.lastErr = lastErr
	p.mu.Unlock()

	if wrote && p.opts.History != nil {
		if e, ok := p.store.Get(host.ID); ok {
			p.opts.History.Record(e)
		}
	}
	if p.opts.OnTick != nil {
		p.opts.OnTick(res)
	}
	return res
}
