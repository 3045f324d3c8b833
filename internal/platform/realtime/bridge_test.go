package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBridge(t *testing.T) (*Bridge, *Hub, *QueryCache) {
	t.Helper()
	cache, err := NewQueryCache(64)
	if err != nil {
		t.Fatalf("NewQueryCache: %v", err)
	}
	hub := NewHub(zerolog.Nop())
	bridge := NewBridge(hub, cache, zerolog.Nop()).WithStartupDelay(time.Millisecond)
	return bridge, hub, cache
}

func publish(t *testing.T, hub *Hub, ev Event) {
	t.Helper()
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func waitAttach() { time.Sleep(20 * time.Millisecond) }

func TestBridgeMarksKeysStale(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("cases:list", []string{"row"})
	cache.Set("cases:count", 1)

	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "cases:list", "cases:count")
	defer sub.Close()
	waitAttach()

	publish(t, hub, Event{Table: "medical_case", Type: EventInsert, Timestamp: time.Now()})

	for _, key := range []string{"cases:list", "cases:count"} {
		if _, ok, stale := cache.Get(key); !ok || !stale {
			t.Errorf("Get(%q) = ok=%v stale=%v, want cached and stale", key, ok, stale)
		}
	}
}

func TestBridgeIgnoresOtherTables(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("cases:list", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "cases:list")
	defer sub.Close()
	waitAttach()

	publish(t, hub, Event{Table: "invoice", Type: EventInsert})

	if _, _, stale := cache.Get("cases:list"); stale {
		t.Error("event on a different table must not invalidate")
	}
}

func TestBridgeEventMask(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{Events: MaskDelete}, "k")
	defer sub.Close()
	waitAttach()

	publish(t, hub, Event{Table: "medical_case", Type: EventInsert})
	if _, _, stale := cache.Get("k"); stale {
		t.Fatal("insert must not match a delete-only mask")
	}

	publish(t, hub, Event{Table: "medical_case", Type: EventDelete})
	if _, _, stale := cache.Get("k"); !stale {
		t.Fatal("delete event should invalidate under MaskDelete")
	}
}

func TestBridgeFilter(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{
		Filter: func(ev Event) bool { return ev.RowID == "42" },
	}, "k")
	defer sub.Close()
	waitAttach()

	publish(t, hub, Event{Table: "medical_case", Type: EventUpdate, RowID: "7"})
	if _, _, stale := cache.Get("k"); stale {
		t.Fatal("filtered-out event invalidated the cache")
	}

	publish(t, hub, Event{Table: "medical_case", Type: EventUpdate, RowID: "42"})
	if _, _, stale := cache.Get("k"); !stale {
		t.Fatal("matching event should invalidate")
	}
}

func TestBridgeDebouncesBursts(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{Debounce: 30 * time.Millisecond}, "k")
	defer sub.Close()
	waitAttach()

	for i := 0; i < 5; i++ {
		publish(t, hub, Event{Table: "medical_case", Type: EventInsert})
	}
	if _, _, stale := cache.Get("k"); stale {
		t.Fatal("keys marked stale before the debounce window elapsed")
	}

	time.Sleep(80 * time.Millisecond)
	if _, _, stale := cache.Get("k"); !stale {
		t.Fatal("trailing invalidation never fired")
	}
}

func TestBridgeCloseStopsInvalidation(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "k")
	waitAttach()
	sub.Close()

	publish(t, hub, Event{Table: "medical_case", Type: EventInsert})

	if _, _, stale := cache.Get("k"); stale {
		t.Error("invalidation occurred after Close")
	}
}

func TestBridgeCloseBeforeStartupDelay(t *testing.T) {
	cache, err := NewQueryCache(8)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub(zerolog.Nop())
	bridge := NewBridge(hub, cache, zerolog.Nop()).WithStartupDelay(50 * time.Millisecond)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "k")
	sub.Close() // before the timer fires

	time.Sleep(100 * time.Millisecond)
	publish(t, hub, Event{Table: "medical_case", Type: EventInsert})

	if _, _, stale := cache.Get("k"); stale {
		t.Error("subscription attached despite Close before the startup delay")
	}
}

func TestBridgeDoubleCloseIsSafe(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "k")
	waitAttach()
	sub.Close()
	sub.Close()
}

func TestChannelErrorDoesNotInvalidate(t *testing.T) {
	bridge, hub, cache := newTestBridge(t)

	cache.Set("k", nil)
	sub := bridge.Subscribe("medical_case", SubscribeOptions{}, "k")
	defer sub.Close()
	waitAttach()

	hub.ReportChannelError("medical_case", errors.New("transport lost"))

	if _, _, stale := cache.Get("k"); stale {
		t.Error("channel error must only log, not invalidate")
	}
}

func TestQueryCacheBasics(t *testing.T) {
	cache, err := NewQueryCache(2)
	if err != nil {
		t.Fatal(err)
	}

	cache.Set("a", 1)
	v, ok, stale := cache.Get("a")
	if !ok || stale || v.(int) != 1 {
		t.Fatalf("Get(a) = (%v, %v, %v)", v, ok, stale)
	}

	cache.MarkStale("a", "missing")
	if _, _, stale := cache.Get("a"); !stale {
		t.Error("MarkStale did not flag entry")
	}

	// Refreshing with Set clears staleness.
	cache.Set("a", 2)
	if _, _, stale := cache.Get("a"); stale {
		t.Error("Set did not reset staleness")
	}

	cache.Remove("a")
	if _, ok, _ := cache.Get("a"); ok {
		t.Error("Remove left entry behind")
	}
}
