package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/siteboundary/internal/adapters/postgres"
	"github.com/samirrijal/siteboundary/internal/adapters/valkey"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/workflows"
)

// ImportStarter launches asynchronous imports.
type ImportStarter interface {
	StartImport(ctx context.Context, input workflows.ImportInput) (workflowID, runID string, err error)
}

// Dependencies holds all services needed by HTTP handlers.
// Everything except Boundaries is optional.
type Dependencies struct {
	Boundaries *usecases.BoundaryService
	Imports    ImportStarter
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}
