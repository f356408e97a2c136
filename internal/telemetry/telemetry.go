// Package telemetry implements Telemetry (C9): an in-memory-only tracer and
// meter, module-boot timing, and process-local cumulative counters,
// grounded on the distilled tool's CoreTelemetry (in-memory
// TracerProvider/MeterProvider, no exporters, no network egress).
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
)

// Counter wraps an OpenTelemetry counter with a process-local cumulative
// value so a CLI "show" panel can read it back without querying the SDK's
// internal state.
type Counter struct {
	otelCounter metric.Int64Counter
	name        string
	unit        string
	description string
	mu          sync.Mutex
	value       int64
}

// Add increments the counter by amount (default 1 semantics are the
// caller's responsibility; amount must be supplied explicitly here).
func (c *Counter) Add(ctx context.Context, amount int64) {
	c.otelCounter.Add(ctx, amount)
	c.mu.Lock()
	c.value += amount
	c.mu.Unlock()
}

// Value returns the counter's current process-local cumulative value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// BootEvent records when a named module finished booting, relative to
// telemetry start.
type BootEvent struct {
	ModuleName string
	ElapsedMs  int64
}

// Telemetry is the process-wide tracer/meter/boot-event tracker. Exactly
// one instance is constructed per process (by cmd/autoforge) and passed
// down; it uses only in-memory SDK readers, so no span or metric ever
// leaves the process.
type Telemetry struct {
	env *env.Env

	tracer trace.Tracer
	meter  metric.Meter
	reader *sdkmetric.ManualReader

	start time.Time

	mu         sync.Mutex
	counters   map[string]*Counter
	counterOrd []string
	bootEvents []BootEvent
}

// New constructs a Telemetry bound to serviceName, wiring an in-memory-only
// TracerProvider and MeterProvider (no exporters, hence no network egress).
func New(e *env.Env, serviceName string) *Telemetry {
	if serviceName == "" {
		serviceName = "autoforge"
	}

	resource := sdkresource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(resource))
	otel.SetTracerProvider(tracerProvider)

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(resource), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		env:      e,
		tracer:   tracerProvider.Tracer(serviceName),
		meter:    meterProvider.Meter(serviceName),
		reader:   reader,
		start:    e.Clock.Now(),
		counters: map[string]*Counter{},
	}
	t.markBootLocked("Telemetry", t.start)
	return t
}

// StartSpan starts a span named name with the given key/value attributes
// (stringified) and returns a function that ends it deterministically;
// callers defer the returned func.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func()) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spanCtx, span := t.tracer.Start(ctx, name)
	for _, k := range keys {
		span.SetAttributes(attribute.String(k, attrs[k]))
	}
	return spanCtx, func() { span.End() }
}

// CreateCounter creates a new named counter, rejecting a duplicate name.
func (t *Telemetry) CreateCounter(name, unit, description string) (*Counter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.counters[name]; exists {
		return nil, aferrors.New(aferrors.KindDuplicate, fmt.Sprintf("counter %q already registered", name))
	}
	otelCounter, err := t.meter.Int64Counter(name, metric.WithUnit(unit), metric.WithDescription(description))
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindUnknown, fmt.Sprintf("creating counter %q", name), err)
	}
	c := &Counter{otelCounter: otelCounter, name: name, unit: unit, description: description}
	t.counters[name] = c
	t.counterOrd = append(t.counterOrd, name)
	return c, nil
}

// CounterValue returns a registered counter's current value, if any.
func (t *Telemetry) CounterValue(name string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[name]
	if !ok {
		return 0, false
	}
	return c.Value(), true
}

// ElapsedSinceStart returns how long this Telemetry instance has existed.
func (t *Telemetry) ElapsedSinceStart() time.Duration {
	return t.env.Clock.Now().Sub(t.start)
}

// MarkModuleBoot records a boot-completion span for module, tagged with the
// elapsed time since telemetry init.
func (t *Telemetry) MarkModuleBoot(moduleName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markBootLocked(moduleName, t.env.Clock.Now())
}

func (t *Telemetry) markBootLocked(moduleName string, at time.Time) {
	elapsed := at.Sub(t.start).Milliseconds()
	t.bootEvents = append(t.bootEvents, BootEvent{ModuleName: moduleName, ElapsedMs: elapsed})

	_, span := t.tracer.Start(context.Background(), "module_boot")
	span.SetAttributes(attribute.String("module.name", moduleName))
	span.End()
}

// BootEvents returns every recorded module-boot event in the order they
// were recorded.
func (t *Telemetry) BootEvents() []BootEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]BootEvent, len(t.bootEvents))
	copy(out, t.bootEvents)
	return out
}
