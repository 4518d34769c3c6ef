package ports

import (
	"context"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// BoundaryRepository persists the active polygon of each session. Upsert
// returns domain.ErrRevisionConflict when the stored revision is not older
// than b.Revision.
type BoundaryRepository interface {
	Upsert(ctx context.Context, b *domain.StoredBoundary) error
	Get(ctx context.Context, sessionID string) (*domain.StoredBoundary, error)
	List(ctx context.Context, limit, offset int) ([]domain.SessionInfo, error)
	Count(ctx context.Context) (int, error)
}

// BoundaryHistoryRepository appends archived boundary changes.
type BoundaryHistoryRepository interface {
	Append(ctx context.Context, change *domain.BoundaryChange) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.HistoryEntry, error)
}
