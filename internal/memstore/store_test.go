package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := Seed(context.Background(), s, sessiongate.SeedOptions{
		SuperAdminRole:    "super",
		Attributes:        sessiongate.DefaultAttributes,
		AdminEmail:        "Admin@Example.com",
		AdminPasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	if err := Seed(ctx, s, sessiongate.SeedOptions{
		SuperAdminRole:    "super",
		Attributes:        sessiongate.DefaultAttributes,
		AdminEmail:        "other@example.com",
		AdminPasswordHash: "hash",
	}); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	roles, _ := s.ListRoles(ctx)
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}
	users, _ := s.ListUsers(ctx)
	if len(users) != 1 {
		t.Fatalf("expected only the first admin, got %d users", len(users))
	}

	admin, err := s.FindUserByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	role, err := s.FindRoleForUser(ctx, admin.UserID)
	if err != nil || role.Name != "super" {
		t.Fatalf("expected super role, got %+v err=%v", role, err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateUser(ctx, sessiongate.CreateUserInput{Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.CreateUser(ctx, sessiongate.CreateUserInput{Email: " A@example.com "})
	if !errors.Is(err, sessiongate.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestSetRoleAttributeRequiresKnownAttribute(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	role, _ := s.CreateRole(ctx, "user", "")

	if err := s.SetRoleAttribute(ctx, role.ID, "launch-missiles", true); !errors.Is(err, sessiongate.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := s.SetRoleAttribute(ctx, role.ID, "view-users", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetRoleAttribute(ctx, role.ID, "view-users", false); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rows, _ := s.ListAttributeMappingsForRole(ctx, role.ID)
	if len(rows) != 1 || rows[0].Value {
		t.Fatalf("expected one false mapping, got %+v", rows)
	}
}

func TestResetTokenClaimedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Unix(1700000000, 0)
	rec := sessiongate.ResetTokenRecord{ID: "r1", UserID: "u1", Token: "tok", CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute)}
	if err := s.CreateResetToken(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.FindActiveResetToken(ctx, "tok", "u2", now); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("wrong user must not match, got %v", err)
	}
	if _, err := s.FindActiveResetToken(ctx, "tok", "u1", now.Add(15*time.Minute)); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("expired row must not match, got %v", err)
	}
	if err := s.MarkResetTokenUsed(ctx, "r1", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := s.MarkResetTokenUsed(ctx, "r1", now); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("second claim must fail, got %v", err)
	}
	if _, err := s.FindActiveResetToken(ctx, "tok", "u1", now); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("used row must not match, got %v", err)
	}
}

func TestDeactivateAndSweep(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Unix(1700000000, 0)
	for _, id := range []string{"s1", "s2"} {
		_ = s.CreateSession(ctx, sessiongate.LedgerSession{ID: id, UserID: "u1", Active: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	}
	_ = s.CreateSession(ctx, sessiongate.LedgerSession{ID: "s3", UserID: "u2", Active: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})

	ids, err := s.DeactivateUserSessions(ctx, "u1")
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v err=%v", ids, err)
	}
	if again, _ := s.DeactivateUserSessions(ctx, "nobody"); len(again) != 0 {
		t.Fatalf("expected no ids, got %v", again)
	}

	n, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inactive rows swept, got %d err=%v", n, err)
	}
	n, _ = s.DeleteExpiredSessions(ctx, now.Add(time.Hour))
	if n != 1 {
		t.Fatalf("expected expired row swept, got %d", n)
	}
}

func TestLoginLogSink(t *testing.T) {
	s := New()
	s.Emit(context.Background(), sessiongate.AuditEvent{EventType: "login_failure", Email: "a@example.com", Metadata: map[string]string{"reason": "password_mismatch"}})
	s.Emit(context.Background(), sessiongate.AuditEvent{EventType: "logout_session"})
	s.Emit(context.Background(), sessiongate.AuditEvent{EventType: "login_success", UserID: "u1", Success: true})

	got := s.LoginAttempts()
	if len(got) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(got))
	}
	if got[0].Success || got[0].FailureReason != "password_mismatch" {
		t.Fatalf("unexpected failure entry: %+v", got[0])
	}
	if !got[1].Success || got[1].FailureReason != "" {
		t.Fatalf("unexpected success entry: %+v", got[1])
	}
}
