package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest input bcrypt accepts.
const MaxBytes = 72

// ErrTooLong is returned when a password exceeds MaxBytes.
var ErrTooLong = errors.New("password exceeds 72 bytes")

// Bcrypt hashes and verifies passwords with a fixed cost.
type Bcrypt struct {
	cost int

	// dummy is compared against when the account does not exist so the
	// unknown-email path costs the same as a wrong password.
	dummyOnce sync.Once
	dummy     []byte
}

// NewBcrypt validates cost against the bcrypt bounds.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a salted bcrypt hash. Input bytes are used exactly as given.
func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > MaxBytes {
		return "", ErrTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches encodedHash. A mismatch is
// (false, nil); a malformed hash is an error.
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// VerifyDummy burns one comparison against a fixed hash and always reports false.
func (b *Bcrypt) VerifyDummy(password string) {
	b.dummyOnce.Do(func() {
		b.dummy, _ = bcrypt.GenerateFromPassword([]byte("sessiongate-dummy-password"), b.cost)
	})
	if len(password) > MaxBytes {
		password = password[:MaxBytes]
	}
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost
// than the one configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}
