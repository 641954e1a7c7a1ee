package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for every token kind.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenTypePasswordReset is the discriminator carried by reset tokens.
const TokenTypePasswordReset = "password_reset"

// ErrInvalidToken is the single failure returned by every Parse method.
// Malformed, expired, tampered, and wrong-kind tokens are not distinguished.
var ErrInvalidToken = errors.New("invalid token")

// Config controls token lifetimes and keys.
type Config struct {
	AccessTTL     time.Duration
	ResetTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager issues and verifies access and password reset tokens. It reads no state.
type Manager struct {
	config    Config
	signKey   interface{}
	verifyKey interface{}
}

// AccessClaims binds a user to one session id. Subject holds the user id.
type AccessClaims struct {
	Email string `json:"email"`
	SID   string `json:"sid"`
	jwt.RegisteredClaims
}

// ResetClaims authorizes exactly one password replacement. Subject holds the user id.
type ResetClaims struct {
	Email               string `json:"email"`
	TokenType           string `json:"token_type"`
	ForceChangePassword bool   `json:"force_change_password"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and resolves its keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid reset TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.signKey = priv
		m.verifyKey = pub
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// ResetTTL returns the configured reset token lifetime.
func (j *Manager) ResetTTL() time.Duration { return j.config.ResetTTL }

// CreateAccess mints an access token for (userID, email, sessionID) expiring
// AccessTTL from now.
func (j *Manager) CreateAccess(userID, email, sessionID string) (string, time.Time, error) {
	now := j.config.Now()
	expiresAt := now.Add(j.config.AccessTTL)

	claims := AccessClaims{
		Email: email,
		SID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(j.method(), claims).SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// CreateReset mints a password reset token expiring ResetTTL from now. The
// caller must persist a ledger row with the returned expiry.
func (j *Manager) CreateReset(userID, email string) (string, time.Time, error) {
	now := j.config.Now()
	expiresAt := now.Add(j.config.ResetTTL)

	claims := ResetClaims{
		Email:               email,
		TokenType:           TokenTypePasswordReset,
		ForceChangePassword: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(j.method(), claims).SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess checks signature and expiry only. It does not confirm the
// session still exists.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseReset checks signature, expiry, the reset discriminator, the force
// flag, and the presence of subject and email. Any miss fails closed.
func (j *Manager) ParseReset(tokenStr string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypePasswordReset || !claims.ForceChangePassword {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return j.verifyKey, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func (j *Manager) method() jwt.SigningMethod {
	if j.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
