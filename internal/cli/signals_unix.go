//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/rackwatch/internal/poller"
)

// notifyLifecycle maps SIGUSR1 to Foreground and SIGUSR2 to Background.
// The returned func stops delivery.
func notifyLifecycle(events chan<- poller.Event) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				ev := poller.Foreground
				if sig == syscall.SIGUSR2 {
					ev = poller.Background
				}
				select {
				case events <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
