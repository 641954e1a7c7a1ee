package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
)

// LoginLogSink appends login attempts to login_logs. It implements
// sessiongate.AuditSink and ignores every other event type.
type LoginLogSink struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

var _ sessiongate.AuditSink = (*LoginLogSink)(nil)

// NewLoginLogSink returns a sink writing to db. Insert failures are logged
// through logger and otherwise dropped.
func NewLoginLogSink(db *sql.DB, logger *slog.Logger) *LoginLogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginLogSink{db: db, logger: logger, timeout: 3 * time.Second}
}

func (s *LoginLogSink) Emit(ctx context.Context, event sessiongate.AuditEvent) {
	attempt, ok := sessiongate.LoginAttemptFromEvent(event)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.Insert(ctx, attempt); err != nil {
		s.logger.Error("login log insert failed", "event_type", event.EventType, "error", err)
	}
}

// Insert writes one row. Rows are never updated afterwards.
func (s *LoginLogSink) Insert(ctx context.Context, attempt sessiongate.LoginAttempt) error {
	var userID sql.NullString
	if _, err := uuid.Parse(attempt.UserID); err == nil {
		userID = sql.NullString{String: attempt.UserID, Valid: true}
	}
	reason := sql.NullString{String: attempt.FailureReason, Valid: attempt.FailureReason != ""}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO login_logs (id, user_id, email, ip_address, user_agent, is_success, failure_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, normalizeEmail(attempt.Email), attempt.IPAddress, attempt.UserAgent,
		attempt.Success, reason, createdAt.UTC())
	return err
}
