package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type blockingSink struct {
	gate chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	// Nil receivers must be safe at every call site.
	d.Emit(context.Background(), Event{EventType: "login.success"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "logout", AccountID: "a1"})

	select {
	case event := <-sink.Events():
		if event.EventType != "logout" || event.AccountID != "a1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event to reach the sink")
	}

	d.Close()
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login.success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected all 10 events delivered before close returned, got %d", got)
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "logout"})
	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{gate: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the rest
	// must drop without blocking.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), Event{EventType: "login.failure"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}

	close(sink.gate)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "login.success", AccountID: "a1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout", AccountID: "a1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var event Event
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != "login.success" || !event.Success {
		t.Fatalf("unexpected event: %+v", event)
	}
}
