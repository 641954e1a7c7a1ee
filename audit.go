package sessiongate

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/sessiongate/internal/audit"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// AuditEvent is one structured security event: logins, refreshes, logouts,
// password resets and changes.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must be safe for concurrent use.
type AuditSink = audit.Sink

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink = audit.JSONWriterSink

// KafkaSink publishes events to a Kafka topic.
type KafkaSink = audit.KafkaSink

// NewChannelSink returns a sink whose events are read from Events().
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing newline-delimited JSON to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging each event through logger.
func NewSlogSink(logger *slog.Logger) AuditSink {
	return audit.NewSlogSink(logger)
}

// NewOTelLogSink returns a sink emitting OpenTelemetry log records, or nil
// when provider is nil.
func NewOTelLogSink(provider *sdklog.LoggerProvider) AuditSink {
	return audit.NewOTelLogSink(provider)
}

// NewKafkaSink returns nil when brokers or topic are empty.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	return audit.NewKafkaSink(brokers, topic, logger)
}

// NewMultiSink fans events out to every non-nil sink in order.
func NewMultiSink(sinks ...AuditSink) AuditSink {
	return audit.NewMultiSink(sinks...)
}

// LoginAttemptFromEvent converts a login or registration event into a login
// log entry. Other event types report false.
func LoginAttemptFromEvent(event AuditEvent) (LoginAttempt, bool) {
	switch event.EventType {
	case auditEventLoginSuccess, auditEventLoginFailure, auditEventLoginResetRequired:
	default:
		return LoginAttempt{}, false
	}

	attempt := LoginAttempt{
		UserID:    event.UserID,
		Email:     event.Email,
		IPAddress: event.IP,
		UserAgent: event.UserAgent,
		Success:   event.Success,
		CreatedAt: event.Timestamp,
	}
	if !event.Success {
		attempt.FailureReason = event.Metadata["reason"]
		if attempt.FailureReason == "" {
			attempt.FailureReason = event.Error
		}
	}
	return attempt, true
}
