// Package config loads server configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/spf13/viper"
)

// Config holds the server settings read from the environment.
type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	SecretKey                       string `mapstructure:"SECRET_KEY"`
	Algorithm                       string `mapstructure:"ALGORITHM"`
	AccessTokenExpireMinutes        int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	SessionExpireMinutes            int    `mapstructure:"SESSION_EXPIRE_MINUTES"`
	PasswordResetTokenExpireMinutes int    `mapstructure:"PASSWORD_RESET_TOKEN_EXPIRE_MINUTES"`

	SSLEnable      bool   `mapstructure:"SSL_ENABLE"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`
	CookieHTTPOnly bool   `mapstructure:"COOKIE_HTTPONLY"`
	CookieSameSite string `mapstructure:"COOKIE_SAMESITE"`

	PasswordMinLength int `mapstructure:"PASSWORD_MIN_LENGTH"`
	BcryptCost        int `mapstructure:"BCRYPT_COST"`

	FailLimit         int `mapstructure:"FAIL_LIMIT"`
	FailWindowSeconds int `mapstructure:"FAIL_WINDOW_SECONDS"`
	BlockTimeSeconds  int `mapstructure:"BLOCK_TIME_SECONDS"`
	// TrustedProxies is a comma-separated list of proxy addresses or CIDRs
	// whose X-Forwarded-For header is honoured.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	DefaultSuperAdminRole string `mapstructure:"DEFAULT_SUPER_ADMIN_ROLE"`
	DefaultAdminEmail     string `mapstructure:"DEFAULT_ADMIN_EMAIL"`
	DefaultAdminPassword  string `mapstructure:"DEFAULT_ADMIN_PASSWORD"`

	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list; empty disables the Kafka audit sink.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaAuditTopic string `mapstructure:"KAFKA_AUDIT_TOPIC"`
	AuditBufferSize int    `mapstructure:"AUDIT_BUFFER_SIZE"`
}

// Load reads .env (if present), overlays the environment and validates the
// result. Environment variables win over .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 1440)
	v.SetDefault("SESSION_EXPIRE_MINUTES", 10080)
	v.SetDefault("PASSWORD_RESET_TOKEN_EXPIRE_MINUTES", 15)
	v.SetDefault("SSL_ENABLE", false)
	_ = v.BindEnv("COOKIE_SECURE") // no default: unset means "follow SSL_ENABLE"
	v.SetDefault("COOKIE_HTTPONLY", true)
	v.SetDefault("COOKIE_SAMESITE", "lax")
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("FAIL_LIMIT", 5)
	v.SetDefault("FAIL_WINDOW_SECONDS", 300)
	v.SetDefault("BLOCK_TIME_SECONDS", 900)
	v.SetDefault("TRUSTED_PROXIES", "127.0.0.1,::1")
	v.SetDefault("DEFAULT_SUPER_ADMIN_ROLE", "super")
	v.SetDefault("DEFAULT_ADMIN_EMAIL", "")
	v.SetDefault("DEFAULT_ADMIN_PASSWORD", "")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "sessiongate")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "sessiongate.audit")
	v.SetDefault("AUDIT_BUFFER_SIZE", 1024)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if !v.IsSet("COOKIE_SECURE") {
		cfg.CookieSecure = cfg.SSLEnable
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.SecretKey == "" {
		return errors.New("config: SECRET_KEY must be set")
	}
	if !strings.EqualFold(c.Algorithm, "HS256") {
		return fmt.Errorf("config: unsupported ALGORITHM %q", c.Algorithm)
	}
	if _, err := parseSameSite(c.CookieSameSite); err != nil {
		return err
	}
	if c.SessionSweepInterval <= 0 {
		return errors.New("config: SESSION_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// Engine converts c into the engine configuration and validates it.
func (c *Config) Engine() (sessiongate.Config, error) {
	sameSite, err := parseSameSite(c.CookieSameSite)
	if err != nil {
		return sessiongate.Config{}, err
	}

	out := sessiongate.DefaultConfig()
	out.JWT.SigningMethod = "hs256"
	out.JWT.PrivateKey = []byte(c.SecretKey)
	out.JWT.AccessTTL = time.Duration(c.AccessTokenExpireMinutes) * time.Minute
	out.Session.TTL = time.Duration(c.SessionExpireMinutes) * time.Minute
	out.PasswordReset.TTL = time.Duration(c.PasswordResetTokenExpireMinutes) * time.Minute
	out.Password.MinLength = c.PasswordMinLength
	out.Password.BcryptCost = c.BcryptCost
	out.RateLimit.FailLimit = c.FailLimit
	out.RateLimit.FailWindow = time.Duration(c.FailWindowSeconds) * time.Second
	out.RateLimit.BlockTime = time.Duration(c.BlockTimeSeconds) * time.Second
	out.Permission.SuperAdminRole = c.DefaultSuperAdminRole
	out.Cookie.Secure = c.CookieSecure
	out.Cookie.HTTPOnly = c.CookieHTTPOnly
	out.Cookie.SameSite = sameSite
	out.Audit.BufferSize = c.AuditBufferSize

	if err := out.Validate(); err != nil {
		return sessiongate.Config{}, fmt.Errorf("config: %w", err)
	}
	return out, nil
}

// SeedOptions returns the seeding input for the stores. The admin password
// is hashed with hash; without DEFAULT_ADMIN_EMAIL no admin is created.
func (c *Config) SeedOptions(attrs []sessiongate.AttributeDef, hash func(string) (string, error)) (sessiongate.SeedOptions, error) {
	opts := sessiongate.SeedOptions{
		SuperAdminRole: c.DefaultSuperAdminRole,
		Attributes:     attrs,
		AdminFirstName: "Super",
		AdminLastName:  "Admin",
	}
	if c.DefaultAdminEmail == "" {
		return opts, nil
	}
	if c.DefaultAdminPassword == "" {
		return sessiongate.SeedOptions{}, errors.New("config: DEFAULT_ADMIN_PASSWORD must be set with DEFAULT_ADMIN_EMAIL")
	}
	adminHash, err := hash(c.DefaultAdminPassword)
	if err != nil {
		return sessiongate.SeedOptions{}, fmt.Errorf("config: hash admin password: %w", err)
	}
	opts.AdminEmail = c.DefaultAdminEmail
	opts.AdminPasswordHash = adminHash
	return opts, nil
}

// KafkaBrokersList splits KafkaBrokers, dropping blanks.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// TrustedProxyList splits TrustedProxies, dropping blanks.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values are Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("config: COOKIE_SAMESITE must be lax, strict or none, got %q", v)
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
