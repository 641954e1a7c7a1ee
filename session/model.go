package session

import "time"

// Session is the ephemeral record stored under one key per session id.
// Timestamps are Unix milliseconds.
type Session struct {
	SchemaVersion uint8

	SessionID   string
	UserID      string
	Email       string
	AccessToken string
	IPAddress   string
	UserAgent   string

	CreatedAt    int64
	LastActivity int64
	ExpiresAt    int64
}

// Expiry returns ExpiresAt as a time.Time.
func (s *Session) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}
