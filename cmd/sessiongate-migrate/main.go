// sessiongate-migrate applies the embedded schema migrations to DATABASE_URL
// and optionally seeds the default roles, attributes and admin account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/config"
	"github.com/MrEthical07/sessiongate/internal/postgres"
	"github.com/MrEthical07/sessiongate/password"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	seed := flag.Bool("seed", false, "Seed default roles, attributes and the admin account after migrating up")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if !*seed || *direction != "up" {
		return
	}

	if err := runSeed(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func runSeed(ctx context.Context, cfg *config.Config) error {
	hasher, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return err
	}
	opts, err := cfg.SeedOptions(sessiongate.DefaultAttributes, hasher.Hash)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	return postgres.Seed(ctx, postgres.New(db), opts)
}
