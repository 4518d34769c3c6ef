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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/siteboundary/internal/adapters/http"
	natsadapter "github.com/samirrijal/siteboundary/internal/adapters/nats"
	"github.com/samirrijal/siteboundary/internal/adapters/postgres"
	"github.com/samirrijal/siteboundary/internal/adapters/valkey"
	"github.com/samirrijal/siteboundary/internal/core/ports"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/pkg/config"
	"github.com/samirrijal/siteboundary/internal/pkg/logging"
	"github.com/samirrijal/siteboundary/internal/pkg/metrics"
	"github.com/samirrijal/siteboundary/internal/pkg/telemetry"
	"github.com/samirrijal/siteboundary/internal/workflows"
)

func main() {
	cfg, err := config.Load("siteboundary-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Database. Interfaces stay nil when it is disabled so the service keeps
	// boundaries in memory only.
	var (
		boundaryRepo ports.BoundaryRepository
		historyRepo  ports.BoundaryHistoryRepository
	)
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		boundaryRepo = postgres.NewBoundaryRepo(db)
		historyRepo = postgres.NewHistoryRepo(db)

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Stat())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Cache
	var exportCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		deps.Cache = cache
		exportCache = cache
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Use cases
	deps.Boundaries = usecases.NewBoundaryService(nil, boundaryRepo, historyRepo, exportCache, publisher, usecases.BoundaryConfig{
		Validator: usecases.ValidatorConfig{
			MinVertices: cfg.Boundary.MinVertices,
			MinAreaM2:   cfg.Boundary.MinAreaM2,
			MaxAreaM2:   cfg.Boundary.MaxAreaM2,
		},
		RejectInvalid:  cfg.Boundary.RejectInvalid,
		ExportCacheTTL: cfg.Boundary.ExportCacheTTL,
	})

	// Temporal import saga. The worker runs in this process so activities
	// act on the same session registry the API serves.
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, async imports disabled", "error", err)
		} else {
			defer tc.Close()
			w := workflows.NewWorker(tc, cfg.Temporal.TaskQueue, &workflows.BoundaryActivities{Boundaries: deps.Boundaries})
			if err := w.Start(); err != nil {
				log.Fatalf("temporal worker: %v", err)
			}
			defer w.Stop()
			deps.Imports = &workflows.Starter{Client: tc, TaskQueue: cfg.Temporal.TaskQueue}
			slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		AppName:      "Site Boundary API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Disposition, Link, ETag, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps, http.RouterConfig{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimit:      100,
	})

	// Graceful shutdown
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

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
