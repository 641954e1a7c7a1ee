package sessiongate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/internal/rate"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/permission"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it once, call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users   UserProvider
	roles   RoleProvider
	ledger  SessionLedger
	resets  ResetLedger
	sweeper Sweeper

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the credential store.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.users = up
	return b
}

// WithRoleProvider sets the role and attribute mapping store.
func (b *Builder) WithRoleProvider(rp RoleProvider) *Builder {
	b.roles = rp
	return b
}

// WithSessionLedger sets the durable session mirror. When l also implements
// [Sweeper] it is used for SweepSessions unless WithSweeper overrides it.
func (b *Builder) WithSessionLedger(l SessionLedger) *Builder {
	b.ledger = l
	return b
}

// WithResetLedger sets the single-use reset token store.
func (b *Builder) WithResetLedger(l ResetLedger) *Builder {
	b.resets = l
	return b
}

// WithSweeper sets the expired-session cleanup target.
func (b *Builder) WithSweeper(s Sweeper) *Builder {
	b.sweeper = s
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for best-effort failures. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance, session timestamps and
// reset expiry checks. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready
// Engine. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user provider required")
	}
	if b.roles == nil {
		return nil, errors.New("role provider required")
	}
	if b.ledger == nil {
		return nil, errors.New("session ledger required")
	}
	if b.resets == nil {
		return nil, errors.New("reset ledger required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- ATTRIBUTE REGISTRY --------
	registry := permission.NewRegistry()
	for _, attr := range cfg.Permission.Attributes {
		if _, err := registry.Register(attr.Name, attr.Description); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- SESSION STORE --------
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix)

	// -------- RATE LIMITER --------
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			FailLimit:  cfg.RateLimit.FailLimit,
			FailWindow: cfg.RateLimit.FailWindow,
			BlockTime:  cfg.RateLimit.BlockTime,
		})
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewBcrypt(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	// -------- JWT MANAGER --------
	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		ResetTTL:      cfg.PasswordReset.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	sweeper := b.sweeper
	if sweeper == nil {
		sweeper, _ = b.ledger.(Sweeper)
	}

	exempt := make(map[string]struct{}, len(cfg.RateLimit.ExemptPaths))
	for _, p := range cfg.RateLimit.ExemptPaths {
		exempt[p] = struct{}{}
	}

	engine := &Engine{
		config:       cfg,
		registry:     registry,
		resolver:     permission.NewResolver(registry, cfg.Permission.SuperAdminRole),
		sessionStore: store,
		rateLimiter:  limiter,
		rateExempt:   exempt,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: 5 * time.Second,
		}, b.auditSink),
		metrics:        NewMetrics(cfg.Metrics),
		passwordHash:   hasher,
		jwtManager:     jwtManager,
		userProvider:   b.users,
		roleProvider:   b.roles,
		sessionLedger:  b.ledger,
		resetLedger:    b.resets,
		sessionSweeper: sweeper,
		logger:         logger,
		clock:          clock,
	}
	engine.flows = engine.buildFlows()

	b.built = true
	return engine, nil
}
