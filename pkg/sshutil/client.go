package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy decides what happens to server keys missing from known_hosts.
type HostKeyPolicy string

const (
	// HostKeyStrict rejects hosts not already in known_hosts.
	HostKeyStrict HostKeyPolicy = "strict"
	// HostKeyAcceptNew records unknown hosts on first use and rejects changed keys.
	HostKeyAcceptNew HostKeyPolicy = "accept-new"
	// HostKeyOff skips verification entirely.
	HostKeyOff HostKeyPolicy = "off"
)

// DefaultTimeout bounds connect plus handshake when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options describes one password-authenticated SSH connection.
type Options struct {
	// Address is a hostname, IP, or ~/.ssh/config alias.
	Address string
	// Port overrides the alias port. Zero means alias port or 22.
	Port int
	// User overrides the alias user.
	User     string
	Password string
	Timeout  time.Duration

	HostKeyPolicy  HostKeyPolicy
	KnownHostsPath string
}

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// WarningHandler receives non-fatal warnings. If nil they go to the default logger.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		logger.Default().Warn("%s", message)
	}
}

// Dial establishes an SSH connection described by opts.
//
// Connection settings for aliases are resolved from ~/.ssh/config; explicit
// Port and User in opts win over the alias. Only password and
// keyboard-interactive authentication are offered.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	settings := resolveSSHSettings(opts, defaultSSHConfigPath())

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var rwErr *errors.Error
		if stderrors.As(err, &rwErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", opts.Address),
			"Check the known_hosts path is readable")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := settings.address()
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", opts.Address, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; a deadline on the socket
	// bounds it, and a cancelled ctx closes the socket.
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if !stop() || err != nil {
		conn.Close()
		if err == nil {
			err = ctx.Err()
		}

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}
		var unknownErr *UnknownHostError
		if stderrors.As(err, &unknownErr) {
			return nil, errors.New(errors.ErrSSH,
				unknownErr.Error(),
				unknownErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", opts.Address),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    opts.Address,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}


// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname string
	port     string
	user     string
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

func defaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// resolveSSHSettings fills in hostname, port and user, consulting the ssh
// config at configPath for aliases. Explicit values in opts take precedence.
func resolveSSHSettings(opts Options, configPath string) *sshSettings {
	settings := &sshSettings{
		hostname: opts.Address,
		port:     "22",
		user:     opts.User,
	}
	if settings.user == "" {
		settings.user = currentUser()
	}

	defer func() {
		if opts.Port > 0 {
			settings.port = strconv.Itoa(opts.Port)
		}
	}()

	// The kevinburke/ssh_config library doesn't support Match, so only the
	// content before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return settings
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings
	}

	alias := opts.Address
	hostFound := false

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}

	if port, _ := cfg.Get(alias, "Port"); port != "" {
		settings.port = port
		hostFound = true
	}

	if user, _ := cfg.Get(alias, "User"); user != "" {
		if opts.User == "" {
			settings.user = user
		}
		hostFound = true
	}

	// Only warn about Match block if host wasn't found - it might be defined after the Match
	if matchLine > 0 && !hostFound && !looksLikeAddress(alias) {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier in ~/.ssh/config.",
				alias, matchLine, matchLine))
		})
	}

	return settings
}

func looksLikeAddress(s string) bool {
	return net.ParseIP(s) != nil || strings.Contains(s, ".")
}

// buildSSHConfig creates the client config: password auth, keyboard-interactive
// answering every prompt with the password, and the host key policy.
func buildSSHConfig(settings *sshSettings, opts Options) (*ssh.ClientConfig, error) {
	password := opts.Password
	authMethods := []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}

	policy := opts.HostKeyPolicy
	if policy == "" {
		policy = HostKeyAcceptNew
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch policy {
	case HostKeyOff:
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // User explicitly disabled host key checking
	case HostKeyStrict, HostKeyAcceptNew:
		knownHostsPath := opts.KnownHostsPath
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	default:
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("Unknown host key policy '%s'", policy),
			"Use one of: strict, accept-new, off")
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

// Helper functions

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "no such host") {
		return "The name doesn't resolve. Check the address or your ~/.ssh/config alias."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "Auth failed. Check the user and password, and that the server allows password login."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The server accepted TCP but never finished the handshake."
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// UnknownHostError is returned under the strict policy for hosts that are not
// in known_hosts yet.
type UnknownHostError struct {
	Hostname   string
	KnownHosts string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("%s is not in %s", e.Hostname, e.KnownHosts)
}

// Suggestion tells the user how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	return fmt.Sprintf(
		"Connect once with ssh to record the key, or set ssh.host_key_checking to accept-new.\n"+
			"    ssh-keyscan %s >> %s", stripPort(e.Hostname), e.KnownHosts)
}

func stripPort(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Returns the original content if no Match directive is found.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// knownHostsMu serializes appends from concurrent first-use connects.
var knownHostsMu sync.Mutex

// createHostKeyCallback wraps the knownhosts callback with better errors and,
// under accept-new, records keys for hosts seen for the first time.
func createHostKeyCallback(knownHostsPath string, policy HostKeyPolicy) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}

		if policy != HostKeyAcceptNew {
			return &UnknownHostError{Hostname: hostname, KnownHosts: knownHostsPath}
		}
		return appendKnownHost(knownHostsPath, hostname, remote, key)
	}, nil
}

func appendKnownHost(knownHostsPath, hostname string, remote net.Addr, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	addresses := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if ra := knownhosts.Normalize(remote.String()); ra != addresses[0] {
			addresses = append(addresses, ra)
		}
	}

	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(knownhosts.Line(addresses, key) + "\n"); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	logger.Default().Info("recorded new host key for %s in %s", hostname, knownHostsPath)
	return nil
}
