//go:build windows

package cli

import "github.com/rileyhilliard/rackwatch/internal/poller"

// notifyLifecycle is a no-op on Windows, which has no user signals.
func notifyLifecycle(events chan<- poller.Event) func() {
	return func() {}
}
