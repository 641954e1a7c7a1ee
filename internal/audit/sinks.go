package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

/*
====================================
SLOG
====================================
*/

// SlogSink writes each event as one structured log line. Failed events are
// logged at Warn, the rest at Info.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}
	for _, kv := range eventFields(event) {
		attrs = append(attrs, slog.String(kv[0], kv[1]))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit", attrs...)
}

/*
====================================
OPENTELEMETRY LOGS
====================================
*/

type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// OTelLogSink sends events as OpenTelemetry log records.
type OTelLogSink struct {
	logger recordEmitter
}

// NewOTelLogSink returns nil when provider is nil so callers can pass it
// straight to NewMultiSink.
func NewOTelLogSink(provider *sdklog.LoggerProvider) Sink {
	if provider == nil {
		return nil
	}
	return &OTelLogSink{logger: provider.Logger("sessiongate.audit")}
}

func (s *OTelLogSink) Emit(ctx context.Context, event Event) {
	rec := otellog.Record{}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(event.EventType))
	if event.Success {
		rec.SetSeverity(otellog.SeverityInfo)
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
	}

	rec.AddAttributes(
		otellog.String("event_type", event.EventType),
		otellog.Bool("success", event.Success),
	)
	for _, kv := range eventFields(event) {
		rec.AddAttributes(otellog.String(kv[0], kv[1]))
	}
	s.logger.Emit(ctx, rec)
}

/*
====================================
KAFKA
====================================
*/

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as a JSON message keyed by user id.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaSink returns nil when brokers or topic are empty.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: writer, timeout: 5 * time.Second, logger: logger}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err = s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil {
		s.logger.Error("audit: kafka emit failed", "event_type", event.EventType, "error", err)
	}
}

// Close flushes and closes the writer. Safe on a nil sink.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// eventFields returns the non-empty string fields of event, metadata last.
func eventFields(event Event) [][2]string {
	out := make([][2]string, 0, 7+len(event.Metadata))
	for _, kv := range [][2]string{
		{"user_id", event.UserID},
		{"email", event.Email},
		{"session_id", event.SessionID},
		{"ip", event.IP},
		{"user_agent", event.UserAgent},
		{"error", event.Error},
	} {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	for k, v := range event.Metadata {
		out = append(out, [2]string{"meta." + k, v})
	}
	return out
}
