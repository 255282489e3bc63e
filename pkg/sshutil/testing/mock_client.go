package testing

import (
	"context"
	"errors"
	"regexp"
	"sync"

	rwerrors "github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing. Commands are answered
// from canned responses; anything unregistered behaves like a missing binary.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	dropped  bool
	commands map[string]CommandResponse // pattern -> response
	order    []string
	calls    []string
}

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		commands: make(map[string]CommandResponse),
	}
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// Exec returns the registered response for cmd. Exact matches win over
// regex patterns; patterns are tried in registration order.
func (m *MockClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, cmd)

	if err := ctx.Err(); err != nil {
		return nil, nil, -1, rwerrors.WrapWithCode(err, rwerrors.ErrExec, "Command did not finish in time: "+cmd, "")
	}
	if m.closed {
		return nil, nil, -1, rwerrors.WrapWithCode(errors.New("use of closed network connection"),
			rwerrors.ErrSSH, "Failed to create SSH session", "")
	}
	if m.dropped {
		return nil, nil, -1, rwerrors.WrapWithCode(errors.New("EOF"),
			rwerrors.ErrSSH, "Connection dropped while running a command", "")
	}

	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	for _, pattern := range m.order {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			resp := m.commands[pattern]
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	return nil, []byte("sh: command not found\n"), 127, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Drop simulates the network going away: every later Exec fails at the
// transport level.
func (m *MockClient) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.commands[pattern]; !exists {
		m.order = append(m.order, pattern)
	}
	m.commands[pattern] = resp
}

// SetOutput is shorthand for a successful response with the given stdout.
func (m *MockClient) SetOutput(cmd, stdout string) {
	m.SetCommandResponse(regexp.QuoteMeta(cmd), CommandResponse{Stdout: []byte(stdout)})
}

// Calls returns every command passed to Exec, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
