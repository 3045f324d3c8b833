// Package debounce coalesces rapid successive calls (search-as-you-type)
// into a single trailing invocation. Each new call cancels the context of
// the superseded one, so a stale in-flight request is abandoned instead of
// racing the newer one.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs at most one pending invocation at a time. Call schedules
// fn after the configured window; a newer Call cancels both the pending
// timer and the context of any invocation already running.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	baseCtx context.Context
}

// New creates a Debouncer with the given trailing window.
func New(window time.Duration) *Debouncer {
	return &Debouncer{window: window, baseCtx: context.Background()}
}

// Call schedules fn to run after the debounce window. The context passed to
// fn is cancelled when a newer Call arrives or Stop is invoked.
func (d *Debouncer) Call(fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
	}

	ctx, cancel := context.WithCancel(d.baseCtx)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.window, func() {
		fn(ctx)
	})
}

// Stop cancels any pending timer and the context of a running invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
