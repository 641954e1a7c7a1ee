package sessiongate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/enginetest"
)

func TestLoginValidateLogout(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "alice@example.com", "pass-word", "user")
	ctx := context.Background()

	res := f.Login(t, "ALICE@example.com ", "pass-word")
	if res.ResetRequired || res.SessionID == "" || res.AccessToken == "" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	auth, err := f.Engine.Validate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if auth.UserID != u.UserID || auth.SessionID != res.SessionID || auth.User.PasswordHash != "" {
		t.Fatalf("unexpected auth result: %+v", auth)
	}

	if err := f.Engine.Logout(ctx, u.UserID, res.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.Engine.Validate(ctx, res.AccessToken); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("validate after logout = %v, want ErrUnauthorized", err)
	}
}

func TestLoginRejectsUnknownAndWrongPasswordAlike(t *testing.T) {
	f := enginetest.New(t, nil)
	f.CreateUser(t, "bob@example.com", "pass-word", "user")
	ctx := context.Background()

	_, errUnknown := f.Engine.Login(ctx, "nobody@example.com", "pass-word")
	_, errWrong := f.Engine.Login(ctx, "bob@example.com", "nope")
	if !errors.Is(errUnknown, sessiongate.ErrInvalidCredentials) || !errors.Is(errWrong, sessiongate.ErrInvalidCredentials) {
		t.Fatalf("errors = %v, %v", errUnknown, errWrong)
	}
	if sessiongate.PublicMessage(errUnknown) != sessiongate.PublicMessage(errWrong) {
		t.Fatal("public messages must match")
	}
}

func TestValidateRejectsTamperedAndExpiredSessions(t *testing.T) {
	f := enginetest.New(t, nil)
	f.CreateUser(t, "carol@example.com", "pass-word", "user")
	ctx := context.Background()
	res := f.Login(t, "carol@example.com", "pass-word")

	tampered := res.AccessToken[:len(res.AccessToken)-2] + "xx"
	if _, err := f.Engine.Validate(ctx, tampered); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("tampered token = %v", err)
	}
	if _, err := f.Engine.Validate(ctx, ""); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("empty token = %v", err)
	}

	f.Redis.FastForward(f.Config.Session.TTL + time.Second)
	if _, err := f.Engine.Validate(ctx, res.AccessToken); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("token of an expired session = %v", err)
	}
}

func TestRefreshInvalidatesPreviousToken(t *testing.T) {
	f := enginetest.New(t, nil)
	f.CreateUser(t, "dave@example.com", "pass-word", "user")
	ctx := context.Background()
	res := f.Login(t, "dave@example.com", "pass-word")

	refreshed, err := f.Engine.Refresh(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == res.AccessToken || refreshed.SessionID != res.SessionID {
		t.Fatalf("unexpected refresh result: %+v", refreshed)
	}
	if _, err := f.Engine.Validate(ctx, res.AccessToken); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("old token = %v, want ErrUnauthorized", err)
	}
	if _, err := f.Engine.Validate(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("new token: %v", err)
	}

	if _, err := f.Engine.Refresh(ctx, "no-such-session"); err == nil {
		t.Fatal("refresh of an unknown session should fail")
	}
}

func TestForcedResetTokenIsSingleUse(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "erin@example.com", "old-password", "user")
	ctx := context.Background()
	if err := f.Store.SetForcedResetFlag(ctx, u.UserID, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	existing, err := f.Engine.CreateSession(ctx, u.UserID, u.Email, "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	res := f.Login(t, "erin@example.com", "old-password")
	if !res.ResetRequired || res.ResetToken == "" || res.SessionID != "" {
		t.Fatalf("expected a deferred login, got %+v", res)
	}

	info, err := f.Engine.ValidateResetToken(ctx, res.ResetToken)
	if err != nil {
		t.Fatalf("validate reset token: %v", err)
	}
	if info.UserID != u.UserID {
		t.Fatalf("reset token user = %q", info.UserID)
	}

	if _, err := f.Engine.ResetPassword(ctx, res.ResetToken, "no"); !errors.Is(err, sessiongate.ErrPasswordPolicy) {
		t.Fatalf("short password = %v, want ErrPasswordPolicy", err)
	}

	after, err := f.Engine.ResetPassword(ctx, res.ResetToken, "new-password")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if after.SessionID == "" || after.AccessToken == "" {
		t.Fatalf("reset should log the user in: %+v", after)
	}
	if _, err := f.Engine.Validate(ctx, existing.AccessToken); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("pre-reset session = %v, want revoked", err)
	}

	if _, err := f.Engine.ResetPassword(ctx, res.ResetToken, "third-password"); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("second reset = %v, want ErrPasswordResetInvalid", err)
	}
	if _, err := f.Engine.ValidateResetToken(ctx, res.ResetToken); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("validate after use = %v", err)
	}

	user, err := f.Store.FindUserByID(ctx, u.UserID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.PasswordResetRequired {
		t.Fatal("forced reset flag should be cleared")
	}
	if _, err := f.Engine.Login(ctx, "erin@example.com", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResetTokenIsNotAnAccessToken(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "frank@example.com", "pass-word", "user")
	ctx := context.Background()
	if err := f.Store.SetForcedResetFlag(ctx, u.UserID, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	res := f.Login(t, "frank@example.com", "pass-word")

	if _, err := f.Engine.Validate(ctx, res.ResetToken); !errors.Is(err, sessiongate.ErrUnauthorized) {
		t.Fatalf("reset token as access token = %v", err)
	}

	normal := f.CreateUser(t, "grace@example.com", "pass-word", "user")
	login := f.Login(t, "grace@example.com", "pass-word")
	if _, err := f.Engine.ValidateResetToken(ctx, login.AccessToken); !errors.Is(err, sessiongate.ErrPasswordResetInvalid) {
		t.Fatalf("access token as reset token for %s = %v", normal.Email, err)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "henry@example.com", "pass-word", "user")
	other := f.CreateUser(t, "iris@example.com", "pass-word", "user")
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		tokens = append(tokens, f.Login(t, "henry@example.com", "pass-word").AccessToken)
	}
	keep := f.Login(t, "iris@example.com", "pass-word")

	n, err := f.Engine.RevokeAllSessions(ctx, u.UserID)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d sessions, want 3", n)
	}
	for _, tok := range tokens {
		if _, err := f.Engine.Validate(ctx, tok); !errors.Is(err, sessiongate.ErrUnauthorized) {
			t.Fatalf("revoked token = %v", err)
		}
	}
	if _, err := f.Engine.Validate(ctx, keep.AccessToken); err != nil {
		t.Fatalf("other user's session for %s: %v", other.Email, err)
	}

	if n, err := f.Engine.RevokeAllSessions(ctx, u.UserID); err != nil || n != 0 {
		t.Fatalf("second revoke = %d, %v", n, err)
	}
}

func TestDisabledAccount(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "jack@example.com", "pass-word", "user")
	ctx := context.Background()
	res := f.Login(t, "jack@example.com", "pass-word")

	if err := f.Store.SetUserEnabled(ctx, u.UserID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := f.Engine.Validate(ctx, res.AccessToken); !errors.Is(err, sessiongate.ErrAccountDisabled) {
		t.Fatalf("validate disabled = %v, want ErrAccountDisabled", err)
	}
	if _, err := f.Engine.Login(ctx, "jack@example.com", "pass-word"); !errors.Is(err, sessiongate.ErrAccountDisabled) {
		t.Fatalf("login disabled = %v, want ErrAccountDisabled", err)
	}
	if _, err := f.Engine.Login(ctx, "jack@example.com", "wrong"); !errors.Is(err, sessiongate.ErrInvalidCredentials) {
		t.Fatalf("login disabled with wrong password = %v, want ErrInvalidCredentials", err)
	}
	if got := f.Engine.MetricsSnapshot().Counters[sessiongate.MetricAccountDisabled]; got == 0 {
		t.Fatal("expected disabled rejections to be counted")
	}
}

func TestAuthorize(t *testing.T) {
	f := enginetest.New(t, nil)
	f.GrantRole(t, "support", "view-users")
	plain := f.CreateUser(t, "kim@example.com", "pass-word", "")
	support := f.CreateUser(t, "lee@example.com", "pass-word", "support")
	root := f.CreateUser(t, "max@example.com", "pass-word", "super")
	ctx := context.Background()

	if _, err := f.Engine.Authorize(ctx, plain.UserID, "view-users"); !errors.Is(err, sessiongate.ErrPermissionDenied) {
		t.Fatalf("user without role = %v", err)
	}

	if d, err := f.Engine.Authorize(ctx, support.UserID, "view-users"); err != nil || !d.Granted {
		t.Fatalf("support view-users = %+v, %v", d, err)
	}
	d, err := f.Engine.Authorize(ctx, support.UserID, "view-users", "manage-users")
	if !errors.Is(err, sessiongate.ErrPermissionDenied) {
		t.Fatalf("support manage-users = %v", err)
	}
	if len(d.Missing) != 1 || d.Missing[0] != "manage-users" {
		t.Fatalf("missing = %v", d.Missing)
	}

	super, err := f.Engine.IsSuperAdmin(ctx, root.UserID)
	if err != nil || !super {
		t.Fatalf("is super admin = %v, %v", super, err)
	}
	attrs, err := f.Engine.GetUserAttributes(ctx, root.UserID)
	if err != nil {
		t.Fatalf("attributes: %v", err)
	}
	for _, def := range sessiongate.DefaultAttributes {
		if !attrs[def.Name] {
			t.Fatalf("super admin lacks %s", def.Name)
		}
	}
	if _, err := f.Engine.Authorize(ctx, root.UserID, "view-users", "manage-roles"); err != nil {
		t.Fatalf("super admin denied: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "nina@example.com", "pass-word", "user")
	ctx := context.Background()
	a := f.Login(t, "nina@example.com", "pass-word")
	b := f.Login(t, "nina@example.com", "pass-word")

	if err := f.Engine.ChangePassword(ctx, u.UserID, "wrong", "next-password", false); !errors.Is(err, sessiongate.ErrInvalidCredentials) {
		t.Fatalf("wrong current = %v", err)
	}
	if err := f.Engine.ChangePassword(ctx, u.UserID, "pass-word", "x", false); !errors.Is(err, sessiongate.ErrPasswordPolicy) {
		t.Fatalf("short new = %v", err)
	}

	if err := f.Engine.ChangePassword(ctx, u.UserID, "pass-word", "next-password", false); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := f.Engine.Validate(ctx, a.AccessToken); err != nil {
		t.Fatalf("session should survive without logout-all: %v", err)
	}

	if err := f.Engine.ChangePassword(ctx, u.UserID, "next-password", "final-password", true); err != nil {
		t.Fatalf("change with logout-all: %v", err)
	}
	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		if _, err := f.Engine.Validate(ctx, tok); !errors.Is(err, sessiongate.ErrUnauthorized) {
			t.Fatalf("session after logout-all change = %v", err)
		}
	}
	if _, err := f.Engine.Login(ctx, "nina@example.com", "final-password"); err != nil {
		t.Fatalf("login with final password: %v", err)
	}
}

func TestRegister(t *testing.T) {
	f := enginetest.New(t, nil)
	ctx := context.Background()

	res, err := f.Engine.Register(ctx, sessiongate.RegisterRequest{
		Email:     "Olga@Example.com",
		Password:  "pass-word",
		FirstName: "Olga",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.Email != "olga@example.com" || res.AccessToken == "" {
		t.Fatalf("unexpected register result: %+v", res)
	}
	role, err := f.Store.FindRoleForUser(ctx, res.User.UserID)
	if err != nil || role.Name != f.Config.Permission.DefaultRole {
		t.Fatalf("default role = %+v, %v", role, err)
	}

	if _, err := f.Engine.Register(ctx, sessiongate.RegisterRequest{Email: "olga@example.com", Password: "pass-word"}); !errors.Is(err, sessiongate.ErrAccountExists) {
		t.Fatalf("duplicate = %v", err)
	}
}

func TestSweepSessionsRemovesInactiveRows(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "pat@example.com", "pass-word", "user")
	ctx := context.Background()
	gone := f.Login(t, "pat@example.com", "pass-word")
	f.Login(t, "pat@example.com", "pass-word")

	if err := f.Engine.Logout(ctx, u.UserID, gone.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	n, err := f.Engine.SweepSessions(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d rows, want 1", n)
	}
	rows, err := f.Engine.ListSessions(ctx, u.UserID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("remaining rows = %d, %v", len(rows), err)
	}
}

func TestListSessionsShowsActiveDevices(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "rosa@example.com", "pass-word", "user")
	ctx := sessiongate.WithUserAgent(sessiongate.WithClientIP(context.Background(), "198.51.100.4"), "laptop")

	first, err := f.Engine.Login(ctx, "rosa@example.com", "pass-word")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	second := f.Login(t, "rosa@example.com", "pass-word")
	logged := f.Login(t, "rosa@example.com", "pass-word")
	if err := f.Engine.Logout(context.Background(), u.UserID, logged.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// A row the sweep has not reached yet.
	past := time.Now().Add(-time.Hour)
	if err := f.Store.CreateSession(context.Background(), sessiongate.LedgerSession{
		ID: "stale", UserID: u.UserID, Active: true, CreatedAt: past.Add(-time.Hour), UpdatedAt: past, ExpiresAt: past,
	}); err != nil {
		t.Fatalf("seed stale row: %v", err)
	}

	list, err := f.Engine.ListSessions(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := map[string]sessiongate.SessionInfo{}
	for _, s := range list {
		ids[s.SessionID] = s
	}
	if len(ids) != 2 {
		t.Fatalf("listed %d sessions, want 2: %+v", len(ids), list)
	}
	got, ok := ids[first.SessionID]
	if !ok || got.IPAddress != "198.51.100.4" || got.UserAgent != "laptop" {
		t.Fatalf("first device = %+v, %v", got, ok)
	}
	if _, ok := ids[second.SessionID]; !ok {
		t.Fatal("second device missing")
	}

	if n, err := f.Engine.ActiveSessionCount(context.Background(), u.UserID); err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
	if _, err := f.Engine.ListSessions(context.Background(), ""); !errors.Is(err, sessiongate.ErrUserNotFound) {
		t.Fatalf("empty user id = %v", err)
	}
}

func TestRateLimitFailuresCountsPerPath(t *testing.T) {
	f := enginetest.New(t, nil)
	ctx := context.Background()

	for range 2 {
		f.Engine.RateLimitObserve(ctx, "203.0.113.8", "/auth/login", 401)
	}
	if n, err := f.Engine.RateLimitFailures(ctx, "203.0.113.8", "/auth/login"); err != nil || n != 2 {
		t.Fatalf("failures = %d, %v", n, err)
	}
	if n, _ := f.Engine.RateLimitFailures(ctx, "203.0.113.8", "/auth/token"); n != 0 {
		t.Fatalf("other path = %d", n)
	}
	f.Engine.RateLimitObserve(ctx, "203.0.113.8", "/", 401)
	if n, _ := f.Engine.RateLimitFailures(ctx, "203.0.113.8", "/"); n != 0 {
		t.Fatalf("exempt path = %d", n)
	}
}

func TestLoginAttemptsReachTheSinkOnClose(t *testing.T) {
	f := enginetest.New(t, nil)
	f.CreateUser(t, "quinn@example.com", "pass-word", "user")
	ctx := sessiongate.WithClientIP(context.Background(), "203.0.113.7")
	ctx = sessiongate.WithUserAgent(ctx, "test-agent")

	if _, err := f.Engine.Login(ctx, "quinn@example.com", "pass-word"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := f.Engine.Login(ctx, "quinn@example.com", "wrong"); err == nil {
		t.Fatal("expected failure")
	}
	f.Engine.Close()

	attempts := f.Store.LoginAttempts()
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if !attempts[0].Success || attempts[0].IPAddress != "203.0.113.7" || attempts[0].UserAgent != "test-agent" {
		t.Fatalf("unexpected success attempt: %+v", attempts[0])
	}
	if attempts[1].Success || attempts[1].FailureReason == "" {
		t.Fatalf("unexpected failure attempt: %+v", attempts[1])
	}
}
