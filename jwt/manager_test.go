package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		ResetTTL:      15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestAccessRoundTripCarriesSessionBinding(t *testing.T) {
	m := newHSManager(t, nil)

	token, exp, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@example.com" || claims.SID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt == nil || !claims.ExpiresAt.Time.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("expected iat and exp %v, got %+v", exp, claims.RegisteredClaims)
	}
}

func TestAccessTokensAreUniquePerIssue(t *testing.T) {
	m := newHSManager(t, nil)

	a, _, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	b, _, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens for the same session")
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	past := newHSManager(t, func() time.Time { return issued })
	token, _, err := past.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	m := newHSManager(t, nil)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseAccessRejectsTamperedAndForeignSignatures(t *testing.T) {
	m := newHSManager(t, nil)
	token, _, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ParseAccess(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}

	other, err := NewManager(Config{
		AccessTTL:     time.Hour,
		ResetTTL:      time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("another-secret-another-secret"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, _, err := other.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to fail, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		ResetTTL:      time.Second,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessRejectsMissingExpiry(t *testing.T) {
	m := newHSManager(t, nil)
	claims := AccessClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{Subject: "u1"}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp to fail, got %v", err)
	}
}

func TestResetRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	token, exp, err := m.CreateReset("u1", "a@example.com")
	if err != nil {
		t.Fatalf("create reset: %v", err)
	}
	if time.Until(exp) > 15*time.Minute {
		t.Fatalf("reset expiry too far: %v", exp)
	}
	claims, err := m.ParseReset(token)
	if err != nil {
		t.Fatalf("parse reset: %v", err)
	}
	if claims.Subject != "u1" || claims.TokenType != TokenTypePasswordReset || !claims.ForceChangePassword {
		t.Fatalf("unexpected reset claims: %+v", claims)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m := newHSManager(t, nil)

	access, _, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseReset(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to fail reset parsing, got %v", err)
	}

	reset, _, err := m.CreateReset("u1", "a@example.com")
	if err != nil {
		t.Fatalf("create reset: %v", err)
	}
	if _, err := m.ParseAccess(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reset token to fail access parsing, got %v", err)
	}
}

func TestParseResetRejectsMissingForceFlag(t *testing.T) {
	m := newHSManager(t, nil)
	claims := ResetClaims{
		Email:     "a@example.com",
		TokenType: TokenTypePasswordReset,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseReset(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected missing force flag to fail, got %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		ResetTTL:      time.Second * 30,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "sessiongate",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := m.CreateAccess("u1", "a@example.com", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("parse access: %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, ResetTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{AccessTTL: time.Minute, ResetTTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{AccessTTL: time.Minute, ResetTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, ResetTTL: time.Minute, SigningMethod: "rs256", PrivateKey: testSecret},
		{AccessTTL: time.Minute, ResetTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("short")},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
