package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/pkg/debounce"
)

// DefaultStartupDelay gives the websocket transport time to finish
// connecting before a subscription attaches.
const DefaultStartupDelay = 500 * time.Millisecond

// SubscribeOptions narrow which events invalidate the caller's cache keys.
type SubscribeOptions struct {
	// Events selects the change kinds; zero value means all.
	Events EventMask
	// Filter, when non-nil, must return true for the event to count.
	Filter func(Event) bool
	// Debounce, when positive, coalesces event bursts so the keys are
	// marked stale once per window instead of once per event.
	Debounce time.Duration
}

// Bridge connects table change events to query-cache invalidation. Each
// Subscribe call owns one subscription; on any matching event every listed
// cache key is marked stale so consumers refetch. Rows are never merged
// into cached values.
type Bridge struct {
	hub          *Hub
	cache        *QueryCache
	logger       zerolog.Logger
	startupDelay time.Duration
}

func NewBridge(hub *Hub, cache *QueryCache, logger zerolog.Logger) *Bridge {
	return &Bridge{hub: hub, cache: cache, logger: logger, startupDelay: DefaultStartupDelay}
}

// WithStartupDelay overrides the attach delay; used by tests.
func (b *Bridge) WithStartupDelay(d time.Duration) *Bridge {
	b.startupDelay = d
	return b
}

// Subscription is a live bridge subscription. Close must be called on
// teardown or the listener leaks with its connection slot.
type Subscription struct {
	mu        sync.Mutex
	timer     *time.Timer
	detach    func()
	debouncer *debounce.Debouncer
	closed    bool
}

// Close cancels a pending startup timer and detaches the listener. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.timer != nil {
		s.timer.Stop()
	}
	if s.debouncer != nil {
		s.debouncer.Stop()
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

// Subscribe watches table changes and marks keys stale on every matching
// event. The listener attaches after the startup delay; Close before the
// delay elapses means it never attaches at all.
func (b *Bridge) Subscribe(table string, opts SubscribeOptions, keys ...string) *Subscription {
	mask := opts.Events
	if mask == 0 {
		mask = MaskAll
	}

	sub := &Subscription{}

	invalidate := func() { b.cache.MarkStale(keys...) }
	if opts.Debounce > 0 {
		sub.debouncer = debounce.New(opts.Debounce)
		d := sub.debouncer
		invalidate = func() {
			d.Call(func(context.Context) { b.cache.MarkStale(keys...) })
		}
	}

	l := &listener{
		fn: func(ev Event) {
			if !mask.Matches(ev.Type) {
				return
			}
			if opts.Filter != nil && !opts.Filter(ev) {
				return
			}
			invalidate()
		},
		onErr: func(err error) {
			// Visibility gap, not a liveness guarantee: log and degrade to
			// no-live-updates. Callers keep another path to consistency.
			b.logger.Warn().Err(err).Str("table", table).Msg("realtime channel error")
		},
	}

	sub.mu.Lock()
	sub.timer = time.AfterFunc(b.startupDelay, func() {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.closed {
			return
		}
		sub.detach = b.hub.attach(table, l)
	})
	sub.mu.Unlock()

	return sub
}
