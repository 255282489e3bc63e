package poller

import "context"

// Event is an application lifecycle signal.
type Event int

const (
	// Foreground means someone is watching again: connect everything.
	Foreground Event = iota + 1
	// Background means nobody is watching: stop polling and disconnect.
	Background
)

func (e Event) String() string {
	switch e {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

// Run applies lifecycle events until ctx ends or events is closed.
// Connect failures are logged; the affected hosts wait for the next
// Foreground.
func (r *Registry) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle applies a single lifecycle event.
func (r *Registry) Handle(ctx context.Context, ev Event) {
	r.log.Debug("lifecycle: %s", ev)
	switch ev {
	case Foreground:
		if err := r.ConnectAll(ctx); err != nil {
			r.log.Debug("connect all: %v", err)
		}
	case Background:
		r.DisconnectAll()
	}
}
