// Package testing provides test doubles for the session package.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/session"
)

// FakeSession is a scripted stand-in for session.Session. Commands return
// their registered output; unregistered commands succeed with empty output.
type FakeSession struct {
	mu       sync.Mutex
	name     string
	state    session.State
	outputs  map[string]string
	failures map[string]error
	drops    map[string]bool
	blocks   map[string]<-chan struct{}

	// ConnectErr, when set, makes Connect fail with it.
	ConnectErr error

	calls       []string
	connects    int
	disconnects int
}

// NewFakeSession creates a disconnected fake named name.
func NewFakeSession(name string) *FakeSession {
	return &FakeSession{
		name:     name,
		outputs:  make(map[string]string),
		failures: make(map[string]error),
		drops:    make(map[string]bool),
		blocks:   make(map[string]<-chan struct{}),
	}
}

// SetOutput registers stdout for a command.
func (f *FakeSession) SetOutput(cmd, stdout string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[cmd] = stdout
	return f
}

// SetFailure makes cmd fail with err until ClearFailure.
func (f *FakeSession) SetFailure(cmd string, err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[cmd] = err
	return f
}

// ClearFailure lets cmd succeed again.
func (f *FakeSession) ClearFailure(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, cmd)
}

// DropOn makes the transport go away while cmd runs: that call fails and
// the session becomes disconnected.
func (f *FakeSession) DropOn(cmd string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops[cmd] = true
	return f
}

// BlockOn makes cmd wait until release is closed or the context ends.
func (f *FakeSession) BlockOn(cmd string, release <-chan struct{}) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[cmd] = release
	return f
}

// Connect marks the fake connected, or fails with ConnectErr.
func (f *FakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if f.state == session.Connected {
		return nil
	}
	if f.ConnectErr != nil {
		f.state = session.Disconnected
		return errors.WrapWithCode(f.ConnectErr, errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to %s", f.name), "")
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to %s", f.name), "")
	}
	f.state = session.Connected
	return nil
}

// Execute returns the scripted result for cmd.
func (f *FakeSession) Execute(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	release := f.blocks[cmd]
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", errors.WrapWithCode(ctx.Err(), errors.ErrExec, "Command did not finish in time: "+cmd, "")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != session.Connected {
		return "", errors.NotConnected(f.name)
	}
	if f.drops[cmd] {
		f.state = session.Disconnected
		return "", errors.WrapWithCode(fmt.Errorf("EOF"), errors.ErrExec,
			"Connection dropped while running a command", "")
	}
	if err, ok := f.failures[cmd]; ok {
		return "", err
	}
	return f.outputs[cmd], nil
}

// Disconnect marks the fake disconnected.
func (f *FakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = session.Disconnected
	return nil
}

// Drop simulates a lost transport without running a command.
func (f *FakeSession) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = session.Disconnected
}

// State returns the current fake state.
func (f *FakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Calls returns every command passed to Execute, in order.
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// ResetCalls forgets recorded commands.
func (f *FakeSession) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Connects returns how many times Connect was called.
func (f *FakeSession) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *FakeSession) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}
