package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, &countingSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestCloseFlushesBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "sign_out"})
	}
	d.Close()
	if got := sink.count.Load(); got != 10 {
		t.Fatalf("sink received %d events, want 10", got)
	}
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := sink.count.Load(); got != 10 {
		t.Fatal("events after Close must be discarded")
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the blocked sink, one fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	close(sink.gate)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "sign_in", Email: "a@example.com", Success: true})
	sink.Emit(context.Background(), Event{EventType: "sign_out", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.EventType != "sign_in" || ev.Email != "a@example.com" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "sign_in", Success: false, Error: "bad credentials"})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "event_type=sign_in") {
		t.Fatalf("unexpected log line %q", out)
	}
}
