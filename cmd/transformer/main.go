package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/geowire/internal/adapters/nats"
	"github.com/samirrijal/geowire/internal/adapters/postgres"
	"github.com/samirrijal/geowire/internal/adapters/valkey"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/config"
	"github.com/samirrijal/geowire/internal/pkg/logging"
	"github.com/samirrijal/geowire/internal/pkg/telemetry"
	"github.com/samirrijal/geowire/internal/workflows"
)

func main() {
	cfg, err := config.Load("geowire-transformer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	var cachePort ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, running without cache invalidation", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}

	// The publisher creates the stream the mirror subscriber binds to.
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, layer mirroring disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	featureSvc := usecases.NewFeatureService(postgres.NewFeatureRepo(db), cachePort, events, nil, cfg.Codec.CacheTTL)

	if events != nil && len(cfg.Transform.MirrorLayers) > 0 {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "geowire-transformer")
		if err != nil {
			log.Fatalf("nats subscriber: %v", err)
		}
		defer sub.Close()
		for _, layer := range cfg.Transform.MirrorLayers {
			target := domain.MirrorLayer(layer)
			err := sub.SubscribeFeatureEvents(ctx, layer, func(ctx context.Context, ev *domain.FeatureEvent) error {
				return featureSvc.MirrorFeature(ctx, ev, target)
			})
			if err != nil {
				log.Fatalf("mirror %s: %v", layer, err)
			}
			slog.Info("mirroring layer", "layer", layer, "target", target)
		}
	}

	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
		Logger:   temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.TransformLayerWorkflow)
	w.RegisterActivity(&workflows.TransformActivities{Features: featureSvc})

	slog.Info("transformer worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		slog.Error("worker stopped", "error", err)
	}
}
