package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the password")
	}

	ok, err := h.Verify("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong horse", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHashIsSalted(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := h.Verify("pw", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestHashRejectsLongPassword(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", MaxBytes+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestNewBcryptRejectsBadCost(t *testing.T) {
	for _, cost := range []int{0, 3, 32} {
		if _, err := NewBcrypt(cost); err == nil {
			t.Fatalf("cost %d: expected error", cost)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	high, _ := NewBcrypt(bcrypt.MinCost + 1)

	hash, err := low.Hash("password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if up, err := high.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade, up=%v err=%v", up, err)
	}
	if up, err := low.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade, up=%v err=%v", up, err)
	}
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	h.VerifyDummy("anything")
	h.VerifyDummy(strings.Repeat("b", 100))
}
