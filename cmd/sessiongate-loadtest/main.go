// Command sessiongate-loadtest measures the authentication gate and token
// refresh against Redis. Without -redis-addr or REDIS_ADDR it runs on
// miniredis with the in-memory store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/memstore"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sessionState struct {
	sid   string
	token string
	mu    sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 50, "number of accounts to create")
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed across the accounts")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, store, err := buildEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	accounts, err := createAccounts(ctx, store, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create accounts failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions for %d users...\n", *sessions, *users)
	startSeed := time.Now()
	for i := range states {
		u := accounts[i%len(accounts)]
		issued, err := engine.CreateSession(ctx, u.UserID, u.Email, "127.0.0.1", "sessiongate-loadtest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "create session failed: %v\n", err)
			os.Exit(1)
		}
		states[i].sid = issued.SessionID
		states[i].token = issued.AccessToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

func buildEngine(client redis.UniversalClient, prefix string) (*sessiongate.Engine, *memstore.Store, error) {
	cfg := sessiongate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("sessiongate-loadtest-secret")
	cfg.Session.RedisPrefix = prefix
	cfg.Password.BcryptCost = 4
	cfg.Audit.Enabled = false

	store := memstore.New()
	engine, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(store).
		WithRoleProvider(store).
		WithSessionLedger(store).
		WithResetLedger(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, store, nil
}

func createAccounts(ctx context.Context, store *memstore.Store, n int) ([]sessiongate.UserRecord, error) {
	hasher, err := password.NewBcrypt(4)
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash("loadtest-password")
	if err != nil {
		return nil, err
	}
	out := make([]sessiongate.UserRecord, 0, n)
	for i := 0; i < n; i++ {
		u, err := store.CreateUser(ctx, sessiongate.CreateUserInput{
			Email:        fmt.Sprintf("user-%d@loadtest.local", i),
			PasswordHash: hash,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// runValidatePhase runs the full gate on random sessions. Tokens are read
// under the state lock so a concurrent refresh never races the read.
func runValidatePhase(ctx context.Context, engine *sessiongate.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				token := state.token
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Validate(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRefreshPhase re-mints the access token of random sessions. The previous
// token stops validating, so each state keeps the latest one.
func runRefreshPhase(ctx context.Context, engine *sessiongate.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				res, err := engine.Refresh(ctx, state.sid)
				d := time.Since(t0)
				if err == nil {
					state.token = res.AccessToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
