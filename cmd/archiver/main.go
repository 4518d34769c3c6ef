package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/siteboundary/internal/adapters/nats"
	"github.com/samirrijal/siteboundary/internal/adapters/postgres"
	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/pkg/config"
	"github.com/samirrijal/siteboundary/internal/pkg/logging"
	"github.com/samirrijal/siteboundary/internal/pkg/telemetry"
)

// archiver consumes boundary change events from JetStream and appends them
// to boundary_history.
func main() {
	cfg, err := config.Load("siteboundary-archiver")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	history := postgres.NewHistoryRepo(db)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.Durable)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeBoundaryChanges(ctx, func(ctx context.Context, change *domain.BoundaryChange) error {
		if err := history.Append(ctx, change); err != nil {
			return err
		}
		slog.Debug("boundary change archived", "session", change.SessionID, "revision", change.Revision)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("archiver started", "durable", cfg.NATS.Durable)
	<-ctx.Done()
	slog.Info("archiver stopped")
}
