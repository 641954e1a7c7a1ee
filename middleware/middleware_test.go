package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/enginetest"
	"github.com/MrEthical07/sessiongate/middleware"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) middleware.Envelope {
	t.Helper()
	var env middleware.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := middleware.AuthResultFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(res.UserID))
	})
}

func TestGuardRejectsMissingToken(t *testing.T) {
	f := enginetest.New(t, nil)
	h := middleware.Guard(f.Engine)(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/account", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Code != http.StatusUnauthorized || env.Message != "could not validate credentials" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestGuardAcceptsValidToken(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "alice@example.com", "secret-pw", "user")
	login := f.Login(t, "alice@example.com", "secret-pw")

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rr := httptest.NewRecorder()
	middleware.Guard(f.Engine)(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != u.UserID {
		t.Fatalf("expected 200 with user id, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestGuardDisabledAccountIsForbidden(t *testing.T) {
	f := enginetest.New(t, nil)
	u := f.CreateUser(t, "bob@example.com", "secret-pw", "user")
	login := f.Login(t, "bob@example.com", "secret-pw")
	if err := f.Store.SetUserEnabled(context.Background(), u.UserID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rr := httptest.NewRecorder()
	middleware.Guard(f.Engine)(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireAttributes(t *testing.T) {
	f := enginetest.New(t, nil)
	f.GrantRole(t, "admin", "view-users")
	f.CreateUser(t, "plain@example.com", "secret-pw", "user")
	f.CreateUser(t, "admin@example.com", "secret-pw", "admin")
	f.CreateUser(t, "root@example.com", "secret-pw", f.Config.Permission.SuperAdminRole)

	h := middleware.Guard(f.Engine)(middleware.RequireAttributes(f.Engine, "view-users")(okHandler()))

	tests := []struct {
		email string
		want  int
	}{
		{"plain@example.com", http.StatusForbidden},
		{"admin@example.com", http.StatusOK},
		{"root@example.com", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			login := f.Login(t, tt.email, "secret-pw")
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			req.Header.Set("Authorization", "Bearer "+login.AccessToken)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusForbidden && decodeEnvelope(t, rr).Message != "permission denied" {
				t.Fatalf("unexpected message: %q", rr.Body.String())
			}
		})
	}
}

func TestRateLimitBlocksAfterFailLimit(t *testing.T) {
	f := enginetest.New(t, nil)
	resolver, err := middleware.NewIPResolver(nil)
	if err != nil {
		t.Fatalf("NewIPResolver: %v", err)
	}

	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, sessiongate.ErrInvalidCredentials)
	})
	h := resolver.ClientInfo(middleware.RateLimit(f.Engine)(failing))

	send := func(remote, path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < f.Config.RateLimit.FailLimit; i++ {
		if code := send("192.0.2.10:4000", "/auth/login"); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, code)
		}
	}
	if code := send("192.0.2.10:4000", "/auth/login"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once blocked, got %d", code)
	}
	// Keys are scoped by path and by ip.
	if code := send("192.0.2.10:4000", "/auth/token"); code != http.StatusUnauthorized {
		t.Fatalf("other path: expected 401, got %d", code)
	}
	if code := send("192.0.2.11:4000", "/auth/login"); code != http.StatusUnauthorized {
		t.Fatalf("other ip: expected 401, got %d", code)
	}
	// The health check is exempt.
	if code := send("192.0.2.10:4000", "/"); code != http.StatusUnauthorized {
		t.Fatalf("exempt path: expected handler status, got %d", code)
	}
}

func TestIPResolver(t *testing.T) {
	resolver, err := middleware.NewIPResolver([]string{"10.0.0.0/8", "127.0.0.1"})
	if err != nil {
		t.Fatalf("NewIPResolver: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted peer ignores header", "203.0.113.5:1000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.5"},
		{"trusted peer uses left-most forwarded", "10.1.2.3:1000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.9"}, "198.51.100.1"},
		{"trusted peer falls back to real ip", "127.0.0.1:1000", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"garbage header uses peer", "10.1.2.3:1000", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.1.2.3"},
		{"no port", "203.0.113.9", nil, "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := resolver.ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := middleware.NewIPResolver([]string{"nonsense/99"}); err == nil {
		t.Fatal("expected error for bad CIDR")
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := middleware.BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("unexpected result %q %v", tok, ok)
	}
	if tok, ok := middleware.BearerToken("bearer abc"); !ok || tok != "abc" {
		t.Fatalf("scheme should be case-insensitive, got %q %v", tok, ok)
	}
	for _, v := range []string{"", "Bearer ", "Basic abc", "abc"} {
		if _, ok := middleware.BearerToken(v); ok {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}
