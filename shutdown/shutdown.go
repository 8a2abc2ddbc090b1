// Package shutdown turns termination signals into context cancellation.
package shutdown

import (
	"context"
	"os"
)

// Context returns a copy of parent that is cancelled on the first
// interrupt or terminate signal. A second signal exits immediately.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 2)
	Notify(sig)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
			Stop(sig)
			return
		}
		select {
		case <-sig:
			os.Exit(1)
		case <-ctx.Done():
			Stop(sig)
		}
	}()
	return ctx, cancel
}

// Reloads delivers a value for each hangup signal until ctx ends. Signals
// that arrive while one is still pending are merged. It never fires on
// Windows.
func Reloads(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sig := make(chan os.Signal, 1)
	NotifyReload(sig)
	go func() {
		defer Stop(sig)
		for {
			select {
			case <-sig:
				select {
				case out <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
