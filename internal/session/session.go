// Package session owns the single SSH connection a poller uses to reach one
// host.
//
// A Session is either disconnected, connecting, or connected. Connect is a
// no-op when already connected. A dropped transport is noticed lazily: the
// next Execute fails, the handle is discarded, and the session reads as
// disconnected until something calls Connect again.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Options controls how a Session dials and runs commands.
type Options struct {
	// ConnectTimeout bounds TCP connect plus handshake.
	ConnectTimeout time.Duration
	// CommandTimeout bounds each Execute. Zero leaves commands unbounded.
	CommandTimeout time.Duration

	HostKeyPolicy  sshutil.HostKeyPolicy
	KnownHostsPath string

	// Dialer opens the transport. Defaults to sshutil.DialClient.
	Dialer sshutil.Dialer
	Logger logger.Logger
}

// OptionsFromConfig builds Options from the poll and ssh sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ConnectTimeout: cfg.Poll.ConnectTimeout,
		CommandTimeout: cfg.Poll.CommandTimeout,
		HostKeyPolicy:  sshutil.HostKeyPolicy(cfg.SSH.HostKeyChecking),
		KnownHostsPath: cfg.SSH.KnownHosts,
	}
}

// Session is one host's remote command channel.
type Session struct {
	host config.Host
	opts Options
	log  logger.Logger

	// connectMu keeps a single Connect in flight.
	connectMu sync.Mutex

	mu     sync.Mutex
	client sshutil.SSHClient
	state  State
}

// New creates a disconnected session for host.
func New(host config.Host, opts Options) *Session {
	if opts.Dialer == nil {
		opts.Dialer = sshutil.DialClient
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[session]")
	}
	return &Session{
		host: host,
		opts: opts,
		log:  log,
	}
}

// Host returns the host this session connects to.
func (s *Session) Host() config.Host {
	return s.host
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the transport. It returns nil at once if the session is
// already connected. Concurrent callers wait for the first attempt and then
// see its result through the state.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	s.mu.Unlock()

	label := s.host.Label()
	s.log.Debug("connecting to %s (%s)", label, s.host.Address)

	client, err := s.opts.Dialer(ctx, sshutil.Options{
		Address:        s.host.Address,
		Port:           s.host.Port,
		User:           s.host.User,
		Password:       s.host.Secret(),
		Timeout:        s.opts.ConnectTimeout,
		HostKeyPolicy:  s.opts.HostKeyPolicy,
		KnownHostsPath: s.opts.KnownHostsPath,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = Disconnected
		s.log.Warn("connect to %s failed: %s", label, errors.Brief(err))
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to %s", label),
			"The host stays offline until the next connect.")
	}

	s.client = client
	s.state = Connected
	s.log.Info("connected to %s (%s)", label, client.GetAddress())
	return nil
}

// Execute runs command and returns its standard output.
//
// It fails with a NOT_CONNECTED error when there is no open transport and
// with EXEC when the remote call itself fails. A transport failure also
// discards the handle, so the session reads as disconnected afterwards. A
// non-zero exit status is not an error: stdout is returned as produced.
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return "", errors.NotConnected(s.host.Label())
	}

	if s.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CommandTimeout)
		defer cancel()
	}

	stdout, stderr, code, err := client.Exec(ctx, command)
	if err != nil {
		if errors.IsCode(err, errors.ErrSSH) {
			s.drop(client, err)
		}
		if errors.IsExecution(err) {
			return "", err
		}
		return "", errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Command failed on %s", s.host.Label()),
			"")
	}

	if code != 0 {
		s.log.Debug("%s: %q exited %d: %s", s.host.Label(), command, code, firstLine(stderr))
	}
	return string(stdout), nil
}

// drop discards client if it is still the current handle.
func (s *Session) drop(client sshutil.SSHClient, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != client {
		return
	}
	_ = client.Close()
	s.client = nil
	s.state = Disconnected
	s.log.Warn("lost connection to %s: %s", s.host.Label(), errors.Brief(cause))
}

// Disconnect closes the transport. It is a no-op when already disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.state = Disconnected
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	s.log.Info("disconnected from %s", s.host.Label())
	if err := client.Close(); err != nil {
		s.log.Debug("close %s: %v", s.host.Label(), err)
	}
	return nil
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
