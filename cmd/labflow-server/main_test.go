package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/internal/platform/telemetry"
)

func TestCountingPublisherCountsAndForwards(t *testing.T) {
	hub := realtime.NewHub(zerolog.Nop())
	metrics := telemetry.NewProvider()
	pub := &countingPublisher{hub: hub, metrics: metrics}

	ev := realtime.Event{Table: "cases", Type: realtime.EventInsert, RowID: "c1", Timestamp: time.Now()}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if got := metrics.Counter("cases", "INSERT"); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}
}

func TestCountingPublisherPerTableIsolation(t *testing.T) {
	hub := realtime.NewHub(zerolog.Nop())
	metrics := telemetry.NewProvider()
	pub := &countingPublisher{hub: hub, metrics: metrics}

	_ = pub.Publish(context.Background(), realtime.Event{Table: "invoices", Type: realtime.EventUpdate})

	if got := metrics.Counter("cases", "UPDATE"); got != 0 {
		t.Errorf("cases counter = %d, want 0", got)
	}
	if got := metrics.Counter("invoices", "UPDATE"); got != 1 {
		t.Errorf("invoices counter = %d, want 1", got)
	}
}
