// Command sessiongate-server runs the authentication HTTP API.
//
// Configuration comes from the environment and an optional .env file. With
// DATABASE_URL set the Postgres store is migrated and used; without it the
// server runs on the in-memory store, which loses everything on restart.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/config"
	"github.com/MrEthical07/sessiongate/internal/httpapi"
	"github.com/MrEthical07/sessiongate/internal/memstore"
	"github.com/MrEthical07/sessiongate/internal/postgres"
	"github.com/MrEthical07/sessiongate/internal/telemetry"
	otelexport "github.com/MrEthical07/sessiongate/metrics/export/otel"
	promexport "github.com/MrEthical07/sessiongate/metrics/export/prometheus"
	"github.com/MrEthical07/sessiongate/middleware"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// store is everything the engine and the admin routes need from a backend.
type store interface {
	sessiongate.UserProvider
	sessiongate.RoleProvider
	sessiongate.SessionLedger
	sessiongate.ResetLedger
	sessiongate.Sweeper
	httpapi.AdminStore
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sessiongate-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.SlogLevel(), cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	hasher, err := password.NewBcrypt(engineCfg.Password.BcryptCost)
	if err != nil {
		return err
	}
	seedOpts, err := cfg.SeedOptions(engineCfg.Permission.Attributes, hasher.Hash)
	if err != nil {
		return err
	}

	backend, loginLog, closeBackend, err := openStore(ctx, cfg, seedOpts, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	kafkaSink := sessiongate.NewKafkaSink(cfg.KafkaBrokersList(), cfg.KafkaAuditTopic, logger)
	sinks := []sessiongate.AuditSink{sessiongate.NewSlogSink(logger), loginLog}
	if providers.Exporting {
		sinks = append(sinks, sessiongate.NewOTelLogSink(providers.LoggerProvider))
	}
	if kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
		defer kafkaSink.Close()
	}

	engine, err := sessiongate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserProvider(backend).
		WithRoleProvider(backend).
		WithSessionLedger(backend).
		WithResetLedger(backend).
		WithSweeper(backend).
		WithAuditSink(sessiongate.NewMultiSink(sinks...)).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if providers.Exporting {
		exporter, err := otelexport.New(providers.MeterProvider.Meter("sessiongate"), engine)
		if err != nil {
			return fmt.Errorf("metrics exporter: %w", err)
		}
		defer exporter.Close()
	}

	resolver, err := middleware.NewIPResolver(cfg.TrustedProxyList())
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	go sweepSessions(ctx, engine, cfg.SessionSweepInterval, logger)

	srv := httpapi.New(cfg.HTTPAddr, httpapi.Deps{
		Engine:     engine,
		Admin:      backend,
		IPResolver: resolver,
		Logger:     logger,
		Metrics:    promexport.New(engine).Handler(),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

// openStore returns the Postgres store when DATABASE_URL is set, otherwise
// the in-memory one. Both are seeded. The returned sink records login
// attempts for the chosen backend.
func openStore(ctx context.Context, cfg *config.Config, seed sessiongate.SeedOptions, logger *slog.Logger) (store, sessiongate.AuditSink, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory store")
		mem := memstore.New()
		if err := memstore.Seed(ctx, mem, seed); err != nil {
			return nil, nil, nil, fmt.Errorf("seed: %w", err)
		}
		return mem, mem, func() {}, nil
	}

	if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
		return nil, nil, nil, err
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	pg := postgres.New(db)
	if err := postgres.Seed(ctx, pg, seed); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("seed: %w", err)
	}
	return pg, postgres.NewLoginLogSink(db, logger), func() { _ = db.Close() }, nil
}

// sweepSessions deletes expired and inactive ledger rows every interval
// until ctx is done.
func sweepSessions(ctx context.Context, engine *sessiongate.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.SweepSessions(ctx)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("session sweep", "deleted", n)
			}
		}
	}
}
