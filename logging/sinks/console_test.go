package sinks

import (
	"bytes"
	"strings"
	"testing"

	"spectate/server/logging"
)

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	err := sink.Write(logging.Event{
		Type:     "spectate.session_started",
		Tick:     7,
		Actor:    logging.EntityRef{ID: "alice", Kind: logging.EntityKindViewer},
		Targets:  []logging.EntityRef{{ID: "spawn", Kind: logging.EntityKindPoint}},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpectate,
		Payload:  map[string]string{"mode": "orbit"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[spectate.session_started]", "tick=7", "actor=viewer:alice", "severity=info", "category=spectate", "targets=point:spawn", `payload={"mode":"orbit"}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestConsoleSinkColorsWarnings(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{UseColor: true})
	if err := sink.Write(logging.Event{Type: "x", Severity: logging.SeverityWarn}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[33mwarn\x1b[0m") {
		t.Fatalf("expected coloured severity, got %q", buf.String())
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	_ = sink.Write(logging.Event{Type: "a"})
	_ = sink.Write(logging.Event{Type: "b"})
	_ = sink.Write(logging.Event{Type: "a"})
	if got := len(sink.EventsOfType("a")); got != 2 {
		t.Fatalf("expected two events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset sink to be empty")
	}
}
