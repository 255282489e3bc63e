package testing

import (
	"context"
	"sync"

	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
)

// Dialer hands out pre-built clients in order, or Err when set. It records
// the options of every dial.
type Dialer struct {
	mu      sync.Mutex
	Clients []*MockClient
	Err     error
	Dials   []sshutil.Options
}

// NewDialer returns a Dialer that yields the given clients one per dial.
func NewDialer(clients ...*MockClient) *Dialer {
	return &Dialer{Clients: clients}
}

// Dial satisfies sshutil.Dialer.
func (d *Dialer) Dial(ctx context.Context, opts sshutil.Options) (sshutil.SSHClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Dials = append(d.Dials, opts)
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.Clients) == 0 {
		return NewMockClient(opts.Address), nil
	}
	c := d.Clients[0]
	if len(d.Clients) > 1 {
		d.Clients = d.Clients[1:]
	}
	return c, nil
}

// DialCount returns how many times Dial was called.
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Dials)
}
