package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/geowire/internal/pkg/config"
	"github.com/samirrijal/geowire/internal/pkg/logging"
)

var files = []string{
	"001_init_extensions.sql",
	"002_features.sql",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down> [dir]")
	}
	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg, err := config.Load("geowire-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		if err := runMigrations(ctx, pool, dir); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	case "down":
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS features"); err != nil {
			slog.Error("drop features", "error", err)
			os.Exit(1)
		}
		slog.Info("features table dropped")
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	for _, name := range files {
		f := filepath.Join(dir, name)
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return err
		}
		slog.Info("migration applied", "file", f)
	}
	slog.Info("all migrations applied")
	return nil
}
