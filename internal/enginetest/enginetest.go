// Package enginetest builds a fully wired Engine on miniredis and the
// in-memory store for tests of the HTTP layers and the engine itself.
package enginetest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/memstore"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Secret is the HS256 key used by Config.
const Secret = "enginetest-signing-secret-0123456789"

// Fixture is one engine and its backing stores.
type Fixture struct {
	Engine *sessiongate.Engine
	Store  *memstore.Store
	Redis  *miniredis.Miniredis
	Client *redis.Client
	Config sessiongate.Config
}

// Config returns DefaultConfig with a test secret and the minimum bcrypt cost.
func Config() sessiongate.Config {
	cfg := sessiongate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(Secret)
	cfg.Password.BcryptCost = 4
	return cfg
}

// New builds an engine from cfg and seeds the default roles and attributes.
// mutate, when non-nil, adjusts the config first. The engine is closed when
// the test ends.
func New(t testing.TB, mutate func(*sessiongate.Config)) *Fixture {
	t.Helper()

	cfg := Config()
	if mutate != nil {
		mutate(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memstore.New()
	if err := memstore.Seed(context.Background(), store, sessiongate.SeedOptions{
		SuperAdminRole: cfg.Permission.SuperAdminRole,
		Attributes:     cfg.Permission.Attributes,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(store).
		WithRoleProvider(store).
		WithSessionLedger(store).
		WithResetLedger(store).
		WithSweeper(store).
		WithAuditSink(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &Fixture{Engine: engine, Store: store, Redis: mr, Client: client, Config: cfg}
}

// CreateUser inserts an enabled user with the given password and role.
// An empty role leaves the user without one.
func (f *Fixture) CreateUser(t testing.TB, email, plain, role string) sessiongate.UserRecord {
	t.Helper()

	hasher, err := password.NewBcrypt(f.Config.Password.BcryptCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.Store.CreateUser(context.Background(), sessiongate.CreateUserInput{Email: email, PasswordHash: hash})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role != "" {
		if err := f.Store.AssignRole(context.Background(), u.UserID, role); err != nil {
			t.Fatalf("assign role: %v", err)
		}
	}
	return u
}

// Login signs email in and fails the test on error.
func (f *Fixture) Login(t testing.TB, email, plain string) *sessiongate.LoginResult {
	t.Helper()

	res, err := f.Engine.Login(context.Background(), email, plain)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

// GrantRole maps attrs to true for the named role.
func (f *Fixture) GrantRole(t testing.TB, roleName string, attrs ...string) {
	t.Helper()

	role, err := f.Store.CreateRole(context.Background(), roleName, "")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	for _, a := range attrs {
		if err := f.Store.SetRoleAttribute(context.Background(), role.ID, a, true); err != nil {
			t.Fatalf("set role attribute %s: %v", a, err)
		}
	}
}
