package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/MrEthical07/sessiongate"
)

/*
====================================
SESSION LEDGER
====================================
*/

func (s *Store) CreateSession(_ context.Context, row sessiongate.LedgerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[row.ID] = row
	return nil
}

func (s *Store) ExtendSession(_ context.Context, sessionID, accessToken string, expiresAt, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[sessionID]
	if !ok || !row.Active {
		return sessiongate.ErrSessionNotFound
	}
	row.AccessToken = accessToken
	row.ExpiresAt = expiresAt
	row.UpdatedAt = updatedAt
	s.sessions[sessionID] = row
	return nil
}

func (s *Store) DeactivateSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[sessionID]
	if !ok || row.UserID != userID {
		return nil
	}
	row.Active = false
	row.UpdatedAt = s.now()
	s.sessions[sessionID] = row
	return nil
}

func (s *Store) DeactivateUserSessions(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ids []string
	for id, row := range s.sessions {
		if row.UserID != userID {
			continue
		}
		if row.Active {
			row.Active = false
			row.UpdatedAt = now
			s.sessions[id] = row
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteExpiredSessions removes rows that are expired or inactive.
func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.sessions {
		if !row.Active || !now.Before(row.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ListUserSessions returns the user's active ledger rows, newest first.
func (s *Store) ListUserSessions(_ context.Context, userID string) ([]sessiongate.LedgerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sessiongate.LedgerSession
	for _, row := range s.sessions {
		if row.UserID == userID && row.Active {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

/*
====================================
RESET LEDGER
====================================
*/

func (s *Store) CreateResetToken(_ context.Context, record sessiongate.ResetTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets[record.ID] = record
	return nil
}

func (s *Store) FindActiveResetToken(_ context.Context, token, userID string, now time.Time) (sessiongate.ResetTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.resets {
		if rec.Token == token && rec.UserID == userID && !rec.Used && now.Before(rec.ExpiresAt) {
			return rec, nil
		}
	}
	return sessiongate.ResetTokenRecord{}, sessiongate.ErrPasswordResetInvalid
}

// MarkResetTokenUsed claims the row. A row that is missing or already used
// returns ErrPasswordResetInvalid, so of two concurrent claims one fails.
func (s *Store) MarkResetTokenUsed(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[id]
	if !ok || rec.Used {
		return sessiongate.ErrPasswordResetInvalid
	}
	rec.Used = true
	rec.UpdatedAt = now
	s.resets[id] = rec
	return nil
}

/*
====================================
LOGIN LOG
====================================
*/

// Emit appends login attempts to the in-memory login log. It lets the Store
// act as an audit sink; other event types are ignored.
func (s *Store) Emit(_ context.Context, event sessiongate.AuditEvent) {
	attempt, ok := sessiongate.LoginAttemptFromEvent(event)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
}

// LoginAttempts returns a copy of the login log in insertion order.
func (s *Store) LoginAttempts() []sessiongate.LoginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]sessiongate.LoginAttempt(nil), s.attempts...)
}
