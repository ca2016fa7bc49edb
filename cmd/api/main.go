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

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	"github.com/samirrijal/geowire/internal/adapters/http"
	natsadapter "github.com/samirrijal/geowire/internal/adapters/nats"
	"github.com/samirrijal/geowire/internal/adapters/postgres"
	"github.com/samirrijal/geowire/internal/adapters/valkey"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/config"
	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/logging"
	"github.com/samirrijal/geowire/internal/pkg/telemetry"
	"github.com/samirrijal/geowire/internal/workflows"
)

// exposedHeaders are the response headers browsers may read cross-origin.
const exposedHeaders = "ETag, Link, X-Total-Count, X-Geometry-Type, X-Geometry-Layout, X-Geometry-SRID, X-Displacement-Meters, X-Feature-Layer"

func main() {
	cfg, err := config.Load("geowire-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
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
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Optional backends are left as untyped nils so the services see them
	// as absent.
	var cachePort ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, serving without cache", "error", err)
	} else {
		defer cache.Close()
		cachePort = cache
	}

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, feature events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Drain()
	}

	var starter ports.WorkflowStarter
	tc, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
		Logger:   temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		slog.Warn("temporal unavailable, layer transforms disabled", "error", err)
	} else {
		defer tc.Close()
		starter = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
	}

	order, err := ewkb.ParseByteOrder(cfg.Codec.ByteOrder)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}
	convertSvc := usecases.NewConvertService(usecases.CodecDefaults{
		TWKBPrecision: cfg.Codec.TWKBPrecision,
		MaxDepth:      cfg.Codec.MaxDepth,
		ByteOrder:     order,
	}, map[domain.Format]ports.GeometryCodec{
		domain.FormatGeoJSON: geojson.Codec{},
		domain.FormatWKT:     geojson.WKTCodec{},
	})
	featureSvc := usecases.NewFeatureService(postgres.NewFeatureRepo(db), cachePort, events, starter, cfg.Codec.CacheTTL)

	deps := &http.Dependencies{
		Convert:  convertSvc,
		Features: featureSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // geometries can be large
		AppName:      "GeoWire API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders: exposedHeaders,
		MaxAge:        3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
