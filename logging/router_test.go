package logging_test

import (
	"context"
	"testing"
	"time"

	"spectate/server/logging"
	"spectate/server/logging/sinks"
)

func TestRouterForwardsAboveMinimumSeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"service": "spectate"}
	fixed := time.Unix(1700000000, 0)
	router, err := logging.NewRouter(logging.ClockFunc(func() time.Time { return fixed }), cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "spectate.debug", Severity: logging.SeverityDebug})
	router.Publish(ctx, logging.Event{Type: "spectate.info", Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := router.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(events))
	}
	if events[0].Type != "spectate.info" {
		t.Fatalf("unexpected event %q", events[0].Type)
	}
	if !events[0].Time.Equal(fixed) {
		t.Fatalf("expected router clock to stamp the event, got %v", events[0].Time)
	}
	if events[0].Extra["service"] != "spectate" {
		t.Fatalf("expected configured fields to be attached, got %v", events[0].Extra)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected one counted event, got %d", stats.EventsTotal)
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected sink lookup by name")
	}
}

func TestWithFieldsKeepsEventValues(t *testing.T) {
	var got logging.Event
	base := logging.PublisherFunc(func(_ context.Context, event logging.Event) { got = event })
	pub := logging.WithFields(base, map[string]any{"world": "overworld", "viewer": "ignored"})

	pub.Publish(context.Background(), logging.Event{Type: "x", Extra: map[string]any{"viewer": "alice"}})
	if got.Extra["world"] != "overworld" {
		t.Fatalf("expected world field, got %v", got.Extra)
	}
	if got.Extra["viewer"] != "alice" {
		t.Fatalf("expected event value to win, got %v", got.Extra["viewer"])
	}
}

func TestSeverityNames(t *testing.T) {
	for _, sev := range []logging.Severity{logging.SeverityDebug, logging.SeverityInfo, logging.SeverityWarn, logging.SeverityError} {
		parsed, ok := logging.ParseSeverity(sev.String())
		if !ok || parsed != sev {
			t.Fatalf("severity %d did not survive its name %q", sev, sev.String())
		}
	}
	if _, ok := logging.ParseSeverity("loud"); ok {
		t.Fatalf("expected unknown severity to be rejected")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	var metrics logging.Metrics
	metrics.TelemetryAdd("b", 1)
	metrics.TelemetryStore("a", 4)
	metrics.TelemetryAdd("b", 2)

	snapshot := metrics.Snapshot()
	if snapshot["a"] != 4 || snapshot["b"] != 3 {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	keys := metrics.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
}

func TestRouterAppliesCategoryFloor(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.CategorySeverity = map[string]logging.Severity{
		logging.CategorySpectate: logging.SeverityDebug,
		logging.CategoryNetwork:  logging.SeverityError,
	}
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	cfg.CategorySeverity[logging.CategorySpectate] = logging.SeverityError

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "spectate.retarget", Severity: logging.SeverityDebug, Category: logging.CategorySpectate})
	router.Publish(ctx, logging.Event{Type: "network.rejected", Severity: logging.SeverityWarn, Category: logging.CategoryNetwork})
	router.Publish(ctx, logging.Event{Type: "lifecycle.debug", Severity: logging.SeverityDebug, Category: logging.CategoryLifecycle})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := router.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	events := memory.Events()
	if len(events) != 1 || events[0].Type != "spectate.retarget" {
		t.Fatalf("expected only the spectate debug event, got %+v", events)
	}
}

func TestNewRouterRejectsUnknownSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"syslog"}
	if _, err := logging.NewRouter(nil, cfg, nil); err == nil {
		t.Fatalf("expected unknown sink to be rejected")
	}
}
