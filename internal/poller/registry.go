package poller

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel caps concurrent connects when RegistryOptions leaves
// it unset.
const DefaultMaxParallel = 8

// SessionFactory creates the session for a newly added host.
type SessionFactory func(host config.Host) Session

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Poll is applied to every poller the registry creates.
	Poll Options
	// MaxParallel bounds ConnectAll fan-out.
	MaxParallel int
	Logger      logger.Logger
}

// Registry keeps one Poller per configured host.
type Registry struct {
	store      *store.Store
	newSession SessionFactory
	opts       RegistryOptions
	log        logger.Logger

	mu      sync.RWMutex
	pollers map[string]*managed
}

type managed struct {
	poller *Poller
	key    string
}

// NewRegistry creates an empty registry. Call Sync to populate it.
func NewRegistry(st *store.Store, newSession SessionFactory, opts RegistryOptions) *Registry {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[registry]")
	}
	if opts.Poll.Logger == nil {
		opts.Poll.Logger = logger.NewEnvLogger("[poller]")
	}
	return &Registry{
		store:      st,
		newSession: newSession,
		opts:       opts,
		log:        log,
		pollers:    make(map[string]*managed),
	}
}

// Store returns the store pollers write into.
func (r *Registry) Store() *store.Store {
	return r.store
}

// Sync reconciles pollers with hosts. New hosts get an idle poller. Hosts
// that disappeared are disconnected and discarded. A host whose connection
// settings changed gets a fresh poller, reconnected if the old one was
// active. Display-only changes such as name and order apply in place.
func (r *Registry) Sync(ctx context.Context, hosts []config.Host) {
	wanted := make(map[string]config.Host, len(hosts))
	for _, h := range hosts {
		wanted[h.ID] = h
	}

	var stale []*Poller
	var reconnect []*Poller

	r.mu.Lock()
	for id, m := range r.pollers {
		h, ok := wanted[id]
		switch {
		case !ok:
			stale = append(stale, m.poller)
			delete(r.pollers, id)
			r.log.Info("removed host %s", m.poller.Host().Label())
		case h.ConnectionKey() != m.key:
			stale = append(stale, m.poller)
			fresh := r.build(h)
			r.pollers[id] = fresh
			if m.poller.State() != Idle {
				reconnect = append(reconnect, fresh.poller)
			}
			r.log.Info("connection settings changed for %s", h.Label())
		default:
			m.poller.setHost(h)
		}
	}
	for id, h := range wanted {
		if _, ok := r.pollers[id]; !ok {
			r.pollers[id] = r.build(h)
			r.log.Info("added host %s", h.Label())
		}
	}
	r.mu.Unlock()

	for _, p := range stale {
		if err := p.Disconnect(); err != nil {
			r.log.Debug("disconnect %s: %v", p.Host().Label(), err)
		}
	}
	for _, p := range reconnect {
		if err := p.Connect(ctx); err != nil {
			r.log.Warn("reconnect %s failed", p.Host().Label())
		}
	}
}

// build must be called with r.mu held.
func (r *Registry) build(h config.Host) *managed {
	return &managed{
		poller: New(h, r.newSession(h), r.store, r.opts.Poll),
		key:    h.ConnectionKey(),
	}
}

// Poller returns the poller for a host id.
func (r *Registry) Poller(id string) (*Poller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.pollers[id]
	if !ok {
		return nil, false
	}
	return m.poller, true
}

// Pollers returns every poller ordered by host order, then label.
func (r *Registry) Pollers() []*Poller {
	r.mu.RLock()
	out := make([]*Poller, 0, len(r.pollers))
	for _, m := range r.pollers {
		out = append(out, m.poller)
	}
	r.mu.RUnlock()

	hosts := make([]config.Host, len(out))
	for i, p := range out {
		hosts[i] = p.Host()
	}
	sort.Sort(byOrder{hosts: hosts, pollers: out})
	return out
}

// Hosts returns the configured hosts in display order.
func (r *Registry) Hosts() []config.Host {
	pollers := r.Pollers()
	hosts := make([]config.Host, len(pollers))
	for i, p := range pollers {
		hosts[i] = p.Host()
	}
	return hosts
}

// ConnectAll connects every idle poller, at most MaxParallel at a time.
// One host failing does not stop the others; all failures are joined.
func (r *Registry) ConnectAll(ctx context.Context) error {
	pollers := r.Pollers()

	var g errgroup.Group
	g.SetLimit(r.opts.MaxParallel)

	var mu sync.Mutex
	var errs []error
	for _, p := range pollers {
		if p.State() == Active {
			continue
		}
		g.Go(func() error {
			if err := p.Connect(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		r.log.Warn("%d of %d hosts failed to connect", len(errs), len(pollers))
	}
	return stderrors.Join(errs...)
}

// DisconnectAll stops every poller and closes its session.
func (r *Registry) DisconnectAll() {
	var g errgroup.Group
	for _, p := range r.Pollers() {
		g.Go(func() error {
			if err := p.Disconnect(); err != nil {
				r.log.Debug("disconnect %s: %v", p.Host().Label(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RemoveHost disconnects and discards one host's poller. Its last readings
// stay in the store. It reports whether the host was known.
func (r *Registry) RemoveHost(id string) bool {
	r.mu.Lock()
	m, ok := r.pollers[id]
	delete(r.pollers, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := m.poller.Disconnect(); err != nil {
		r.log.Debug("disconnect %s: %v", m.poller.Host().Label(), err)
	}
	r.log.Info("removed host %s", m.poller.Host().Label())
	return true
}

// PollAll runs one tick on every active poller concurrently and waits for
// them all.
func (r *Registry) PollAll(ctx context.Context) []TickResult {
	pollers := r.Pollers()
	results := make([]TickResult, len(pollers))

	var g errgroup.Group
	g.SetLimit(r.opts.MaxParallel)
	for i, p := range pollers {
		if p.State() != Active {
			continue
		}
		g.Go(func() error {
			res, err := p.PollNow(ctx)
			if err == nil {
				results[i] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, res := range results {
		if res.HostID != "" {
			out = append(out, res)
		}
	}
	return out
}

type byOrder struct {
	hosts   []config.Host
	pollers []*Poller
}

func (b byOrder) Len() int { return len(b.hosts) }

func (b byOrder) Less(i, j int) bool {
	if b.hosts[i].Order != b.hosts[j].Order {
		return b.hosts[i].Order < b.hosts[j].Order
	}
	if b.hosts[i].Label() != b.hosts[j].Label() {
		return b.hosts[i].Label() < b.hosts[j].Label()
	}
	return b.hosts[i].ID < b.hosts[j].ID
}

func (b byOrder) Swap(i, j int) {
	b.hosts[i], b.hosts[j] = b.hosts[j], b.hosts[i]
	b.pollers[i], b.pollers[j] = b.pollers[j], b.pollers[i]
}
