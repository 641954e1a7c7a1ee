package sessiongate

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config holds every tunable of the engine, grouped per area.
//
// Build clones the Config it is given, so mutating the caller's copy after Build has no effect.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	Permission    PermissionConfig
	Cookie        CookieConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and reset token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	// PrivateKey is the HMAC secret for hs256, or the Ed25519 private key.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the ephemeral session record and its ledger mirror.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls password hashing and the length policy.
type PasswordConfig struct {
	BcryptCost int
	MinLength  int
	MaxLength  int
}

// PasswordResetConfig controls the forced-reset token lifetime.
type PasswordResetConfig struct {
	TTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the per (ip, path) authentication failure limiter.
type RateLimitConfig struct {
	Enabled     bool
	FailLimit   int
	FailWindow  time.Duration
	BlockTime   time.Duration
	ExemptPaths []string
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig names the attribute catalogue and the role defaults.
type PermissionConfig struct {
	SuperAdminRole string
	DefaultRole    string
	Attributes     []AttributeDef
}

// AttributeDef is one known attribute with its human description.
type AttributeDef struct {
	Name        string
	Description string
}

// DefaultAttributes are the capabilities shipped with the engine.
var DefaultAttributes = []AttributeDef{
	{Name: "view-users", Description: "View users"},
	{Name: "manage-users", Description: "Create, update, disable and assign roles to users"},
	{Name: "view-roles", Description: "View roles and their attributes"},
	{Name: "manage-roles", Description: "Create roles and edit their attributes"},
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the session_id cookie handed to browsers.
type CookieConfig struct {
	Name     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the engine uses when none is supplied.
// JWT.PrivateKey is left empty and must be set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     1440 * time.Minute,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RedisPrefix: "session",
			TTL:         10080 * time.Minute,
		},
		Password: PasswordConfig{
			BcryptCost: 12,
			MinLength:  6,
			MaxLength:  72,
		},
		PasswordReset: PasswordResetConfig{
			TTL: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			FailLimit:   5,
			FailWindow:  300 * time.Second,
			BlockTime:   900 * time.Second,
			ExemptPaths: []string{"/", "/docs", "/redoc", "/openapi.json"},
		},
		Permission: PermissionConfig{
			SuperAdminRole: "super",
			DefaultRole:    "user",
			Attributes:     append([]AttributeDef(nil), DefaultAttributes...),
		},
		Cookie: CookieConfig{
			Name:     "session_id",
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
			Path:     "/",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.RateLimit.ExemptPaths = append([]string(nil), cfg.RateLimit.ExemptPaths...)
	out.Permission.Attributes = append([]AttributeDef(nil), cfg.Permission.Attributes...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72")
	}

	// Password reset
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.PasswordReset.TTL >= c.JWT.AccessTTL {
		return errors.New("PasswordReset TTL must be shorter than JWT AccessTTL")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.FailLimit <= 0 {
			return errors.New("RateLimit FailLimit must be > 0")
		}
		if c.RateLimit.FailWindow <= 0 {
			return errors.New("RateLimit FailWindow must be > 0")
		}
		if c.RateLimit.BlockTime <= 0 {
			return errors.New("RateLimit BlockTime must be > 0")
		}
	}

	// Permission
	if strings.TrimSpace(c.Permission.SuperAdminRole) == "" {
		return errors.New("Permission SuperAdminRole must not be empty")
	}
	if len(c.Permission.Attributes) == 0 {
		return errors.New("Permission Attributes must not be empty")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
