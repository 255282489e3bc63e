package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/poller"
	"github.com/rileyhilliard/rackwatch/internal/session"
	"github.com/rileyhilliard/rackwatch/internal/store"
)

// shutdownTimeout bounds DisconnectAll on exit. A tick stuck on a command
// with no command_timeout would otherwise hold the process open.
const shutdownTimeout = 10 * time.Second

// app is the wiring shared by watch, snapshot and serve.
type app struct {
	cfg      *config.Config
	path     string
	store    *store.Store
	history  *store.History
	registry *poller.Registry
	// secrets holds prompted passwords by host id.
	secrets map[string]string
}

// loadConfig loads the config named by --config, or the default search
// path, and validates it.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return nil, path, err
	}
	cfg.SSH.KnownHosts = config.ExpandTilde(cfg.SSH.KnownHosts)
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newApp builds the store, history and registry for cfg. The registry is
// empty until sync is called.
func newApp(cfg *config.Config, path string, onTick func(poller.TickResult)) *app {
	st := store.New()
	hist := store.NewHistory(store.DefaultHistorySize)
	sessOpts := session.OptionsFromConfig(cfg)

	reg := poller.NewRegistry(st, func(h config.Host) poller.Session {
		return session.New(h, sessOpts)
	}, poller.RegistryOptions{
		Poll: poller.Options{
			Interval: cfg.Poll.Interval,
			History:  hist,
			OnTick:   onTick,
		},
		MaxParallel: cfg.Poll.MaxParallel,
	})

	return &app{
		cfg:      cfg,
		path:     path,
		store:    st,
		history:  hist,
		registry: reg,
		secrets:  make(map[string]string),
	}
}

// sync loads hosts into the registry, restoring prompted passwords.
func (a *app) sync(ctx context.Context, hosts []config.Host) {
	a.registry.Sync(ctx, a.fillSecrets(hosts))
}

// shutdown disconnects every host, giving up after shutdownTimeout.
func (a *app) shutdown() {
	done := make(chan struct{})
	go func() {
		a.registry.DisconnectAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		fmt.Fprintln(os.Stderr, "warning: some hosts did not disconnect in time")
	}
}

// requireHosts fails when there is nothing to poll.
func requireHosts(hosts []config.Host) error {
	if len(hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"No hosts configured",
			"Add a host with 'rackwatch host add' first.")
	}
	return nil
}

// selectHosts returns the host matching ref (id or name), or every host
// when ref is empty.
func selectHosts(cfg *config.Config, ref string) ([]config.Host, error) {
	if ref == "" {
		return cfg.Hosts, nil
	}
	h, ok := cfg.FindHost(ref)
	if !ok {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' not found", ref),
			"List hosts with: rackwatch host list")
	}
	return []config.Host{h}, nil
}

// passwordReader reads a secret without echo. Tests replace it.
var passwordReader = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

// promptSecrets asks for the password of every host that has none
// configured and remembers the answers in memory for later reloads.
// Without a terminal on in the hosts are returned unchanged and will fail
// to authenticate.
func (a *app) promptSecrets(hosts []config.Host, in *os.File, out io.Writer) ([]config.Host, error) {
	hosts = a.fillSecrets(hosts)
	if !term.IsTerminal(int(in.Fd())) {
		return hosts, nil
	}
	for i, h := range hosts {
		if h.Secret() != "" {
			continue
		}
		fmt.Fprintf(out, "Password for %s@%s: ", h.User, h.Label())
		pw, err := passwordReader(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't read password for "+h.Label(),
				"Set password_env in the config to skip the prompt.")
		}
		hosts[i].Password = string(pw)
		a.secrets[h.ID] = string(pw)
	}
	return hosts, nil
}

// fillSecrets copies hosts, restoring passwords entered earlier for hosts
// that still have none configured.
func (a *app) fillSecrets(hosts []config.Host) []config.Host {
	out := make([]config.Host, len(hosts))
	copy(out, hosts)
	for i, h := range out {
		if pw, ok := a.secrets[h.ID]; ok && h.Secret() == "" {
			out[i].Password = pw
		}
	}
	return out
}
