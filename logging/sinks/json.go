package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"spectate/server/logging"
)

// jsonRecord is one line of the JSON log. Viewer and session fields are
// lifted out of the event so log tooling can filter on them directly.
type jsonRecord struct {
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Type      logging.EventType   `json:"type"`
	Category  string              `json:"category,omitempty"`
	Tick      uint64              `json:"tick"`
	Viewer    string              `json:"viewer,omitempty"`
	Actor     *logging.EntityRef  `json:"actor,omitempty"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

func newJSONRecord(event logging.Event) jsonRecord {
	rec := jsonRecord{
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Type:      event.Type,
		Category:  event.Category,
		Tick:      event.Tick,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	}
	if event.Actor.ID != "" {
		actor := event.Actor
		rec.Actor = &actor
		if actor.Kind == logging.EntityKindViewer {
			rec.Viewer = actor.ID
		}
	}
	return rec
}

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
	stop      chan struct{}
	closeOnce sync.Once
}

// NewJSON constructs a JSON sink writing to w. A positive flushInterval
// batches writes and flushes on that period; otherwise every event is flushed.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:    buf,
		encoder:   json.NewEncoder(buf),
		autoFlush: flushInterval <= 0,
		stop:      make(chan struct{}),
	}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(newJSONRecord(event)); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close stops the flush timer and flushes what is buffered.
func (s *JSON) Close(context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
