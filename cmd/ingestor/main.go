package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	natsadapter "github.com/samirrijal/geowire/internal/adapters/nats"
	"github.com/samirrijal/geowire/internal/adapters/postgres"
	"github.com/samirrijal/geowire/internal/adapters/valkey"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/config"
	"github.com/samirrijal/geowire/internal/pkg/logging"
)

const (
	batchSize = 500
	workers   = 4
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: ingestor <layer> <file.geojson>...")
	}
	layer, paths := os.Args[1], os.Args[2:]
	if !domain.ValidLayer(layer) {
		log.Fatalf("invalid layer %q", layer)
	}

	cfg, err := config.Load("geowire-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var cachePort ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, stale cache entries expire on their own", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, imported features will not be announced", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	svc := usecases.NewFeatureService(postgres.NewFeatureRepo(db), cachePort, events, nil, cfg.Codec.CacheTTL)

	start := time.Now()
	total := 0
	for _, path := range paths {
		n, err := ingestFile(ctx, svc, layer, path)
		if err != nil {
			slog.Error("ingest failed", "file", path, "error", err)
			os.Exit(1)
		}
		total += n
	}
	slog.Info("ingestion complete", "layer", layer, "files", len(paths), "features", total, "elapsed", time.Since(start).String())
}

// ingestFile loads one FeatureCollection and writes it in batches through a
// bounded worker pool.
func ingestFile(ctx context.Context, svc *usecases.FeatureService, layer, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	features, err := geojson.ParseFeatureCollection(data, layer)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	log := slog.With("file", path, "layer", layer)
	log.Info("parsed feature collection", "features", len(features))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(features); lo += batchSize {
		batch := features[lo:min(lo+batchSize, len(features))]
		g.Go(func() error {
			if err := svc.Import(ctx, batch); err != nil {
				return fmt.Errorf("batch at %d: %w", lo, err)
			}
			log.Debug("batch imported", "offset", lo, "size", len(batch))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(features), nil
}
