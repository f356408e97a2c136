package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/autoforge-project/autoforge/internal/env"
)

func newTestTelemetry(t *testing.T) *Telemetry {
	t.Helper()
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	return New(e, "autoforge-test")
}

func TestMarkModuleBootRecordsInOrder(t *testing.T) {
	tel := newTestTelemetry(t)
	tel.MarkModuleBoot("Registry")
	tel.MarkModuleBoot("Loader")

	events := tel.BootEvents()
	if len(events) != 3 { // Telemetry itself + the two above
		t.Fatalf("BootEvents() len = %d, want 3", len(events))
	}
	if events[0].ModuleName != "Telemetry" || events[1].ModuleName != "Registry" || events[2].ModuleName != "Loader" {
		t.Errorf("unexpected boot event order: %+v", events)
	}
}

func TestCreateCounterAndAdd(t *testing.T) {
	tel := newTestTelemetry(t)
	counter, err := tel.CreateCounter("builds_started", "1", "number of builds started")
	if err != nil {
		t.Fatalf("CreateCounter: %v", err)
	}
	counter.Add(context.Background(), 1)
	counter.Add(context.Background(), 2)

	value, ok := tel.CounterValue("builds_started")
	if !ok || value != 3 {
		t.Errorf("CounterValue = (%d, %v), want (3, true)", value, ok)
	}
}

func TestCreateCounterDuplicateRejected(t *testing.T) {
	tel := newTestTelemetry(t)
	if _, err := tel.CreateCounter("x", "1", ""); err != nil {
		t.Fatalf("first CreateCounter: %v", err)
	}
	if _, err := tel.CreateCounter("x", "1", ""); err == nil {
		t.Fatal("expected duplicate counter error")
	}
}

func TestStartSpanEndsDeterministically(t *testing.T) {
	tel := newTestTelemetry(t)
	_, end := tel.StartSpan(context.Background(), "test-span", map[string]string{"k": "v"})
	end() // must not panic
}
