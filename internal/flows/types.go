package flows

import (
	"context"
	"time"
)

// UserRecord is the flow-local user model. The Engine converts to and from
// its public record at the dependency boundary.
type UserRecord struct {
	UserID        string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	PasswordHash  string
	Enabled       bool
	ResetRequired bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionIssue is a freshly created session bound to its access token.
type SessionIssue struct {
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// ResetIssue is a freshly minted reset token with its ledger expiry.
type ResetIssue struct {
	Token     string
	ExpiresAt time.Time
}

// AuditFunc emits one audit event. The metadata builder is only invoked when
// auditing is enabled.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID, email, sessionID string, err error, metadata func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, string, error, func() map[string]string) {
}

func noopMetric(int) {}

func noopWarn(string, ...any) {}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
