package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	otellog "go.opentelemetry.io/otel/log"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectSink) Emit(_ context.Context, e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Emit(context.Context, Event) { <-b.release }

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if sink.len() != 10 {
		t.Fatalf("expected 10 delivered events, got %d", sink.len())
	}
	if d.Delivered() != 10 {
		t.Fatalf("expected delivered counter 10, got %d", d.Delivered())
	}
	if sink.events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp stamped on emit")
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if sink.len() != 10 {
		t.Fatal("emit after close must be dropped silently")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the sink, one sits in the buffer, the rest drop.
	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	NewJSONWriterSink(&buf).Emit(context.Background(), Event{EventType: "logout", UserID: "u-1", Success: true})

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode written line: %v", err)
	}
	if got.EventType != "logout" || got.UserID != "u-1" || !got.Success {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "login_failure", Email: "a@example.com", Metadata: map[string]string{"reason": "password_mismatch"}})
	out := buf.String()
	for _, want := range []string{"level=WARN", "event_type=login_failure", "email=a@example.com", "meta.reason=password_mismatch"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &collectSink{}, &collectSink{}
	sink := NewMultiSink(a, nil, b)
	sink.Emit(context.Background(), Event{EventType: "x"})
	if a.len() != 1 || b.len() != 1 {
		t.Fatalf("expected fan-out, got a=%d b=%d", a.len(), b.len())
	}

	if _, ok := NewMultiSink(nil).(NoOpSink); !ok {
		t.Fatal("expected NoOpSink for no sinks")
	}
	if NewMultiSink(a) != Sink(a) {
		t.Fatal("expected single sink unwrapped")
	}
}

type recordCapture struct {
	records []otellog.Record
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.records = append(r.records, rec)
}

func TestOTelLogSinkAttributes(t *testing.T) {
	capture := &recordCapture{}
	sink := &OTelLogSink{logger: capture}

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.Emit(context.Background(), Event{Timestamp: ts, EventType: "password_reset_success", UserID: "u-1", Success: true})

	if len(capture.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(capture.records))
	}
	rec := capture.records[0]
	if !rec.Timestamp().Equal(ts) {
		t.Fatalf("unexpected timestamp %v", rec.Timestamp())
	}
	if rec.Body().AsString() != "password_reset_success" {
		t.Fatalf("unexpected body %q", rec.Body().AsString())
	}

	attrs := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Value.Kind() == otellog.KindString {
			attrs[kv.Key] = kv.Value.AsString()
		}
		return true
	})
	if attrs["user_id"] != "u-1" || attrs["event_type"] != "password_reset_success" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSinkPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, timeout: time.Second, logger: slog.Default()}

	sink.Emit(context.Background(), Event{EventType: "logout_all", UserID: "u-9"})
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "u-9" {
		t.Fatalf("expected key u-9, got %q", w.msgs[0].Key)
	}
	var got Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.EventType != "logout_all" {
		t.Fatalf("unexpected payload %+v", got)
	}

	if err := sink.Close(); err != nil || !w.closed {
		t.Fatalf("expected close, err=%v closed=%v", err, w.closed)
	}
}

func TestKafkaSinkWriteErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	w := &fakeWriter{err: errors.New("broker down")}
	sink := &KafkaSink{writer: w, timeout: time.Second, logger: slog.New(slog.NewTextHandler(&buf, nil))}

	sink.Emit(context.Background(), Event{EventType: "x"})
	if !strings.Contains(buf.String(), "broker down") {
		t.Fatalf("expected logged error, got %q", buf.String())
	}
}

func TestNilConstructors(t *testing.T) {
	if NewKafkaSink(nil, "t", nil) != nil {
		t.Fatal("expected nil kafka sink without brokers")
	}
	if NewOTelLogSink(nil) != nil {
		t.Fatal("expected nil otel sink without provider")
	}
}
