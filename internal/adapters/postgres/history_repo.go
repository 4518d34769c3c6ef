package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// HistoryRepo implements ports.BoundaryHistoryRepository.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append archives a change. Redelivered changes are ignored.
func (r *HistoryRepo) Append(ctx context.Context, c *domain.BoundaryChange) error {
	var vertices, metadata []byte
	if c.Polygon != nil {
		var err error
		if vertices, err = json.Marshal(c.Polygon.Vertices); err != nil {
			return fmt.Errorf("marshal vertices: %w", err)
		}
		if metadata, err = json.Marshal(nonNilMetadata(c.Polygon.Metadata)); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO boundary_history (session_id, revision, cleared, vertices, metadata, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, revision) DO NOTHING
	`, c.SessionID, c.Revision, c.Cleared, vertices, metadata, c.At)
	return err
}

// ListBySession returns a session's archived changes, newest first.
func (r *HistoryRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.HistoryEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, session_id, revision, cleared, vertices, metadata, changed_at
		FROM boundary_history
		WHERE session_id = $1
		ORDER BY revision DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryEntry, error) {
		var (
			e                  domain.HistoryEntry
			vertices, metadata []byte
		)
		if err := row.Scan(&e.ID, &e.SessionID, &e.Revision, &e.Cleared, &vertices, &metadata, &e.At); err != nil {
			return e, err
		}
		if vertices != nil {
			p := domain.BoundaryPolygon{}
			if err := json.Unmarshal(vertices, &p.Vertices); err != nil {
				return e, fmt.Errorf("unmarshal vertices: %w", err)
			}
			if metadata != nil {
				if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
					return e, fmt.Errorf("unmarshal metadata: %w", err)
				}
			}
			e.Polygon = &p
		}
		return e, nil
	})
}
