package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// BoundaryRepo implements ports.BoundaryRepository. Vertices and metadata
// are stored as JSONB.
type BoundaryRepo struct {
	db *DB
}

// NewBoundaryRepo creates a new BoundaryRepo.
func NewBoundaryRepo(db *DB) *BoundaryRepo {
	return &BoundaryRepo{db: db}
}

// Upsert writes the session's active polygon, or a cleared row when
// b.Cleared is set. Older revisions never overwrite newer ones.
func (r *BoundaryRepo) Upsert(ctx context.Context, b *domain.StoredBoundary) error {
	var polygon domain.BoundaryPolygon
	if !b.Cleared {
		polygon = b.Polygon
	}
	vertices, err := json.Marshal(nonNilVertices(polygon.Vertices))
	if err != nil {
		return fmt.Errorf("marshal vertices: %w", err)
	}
	metadata, err := json.Marshal(nonNilMetadata(polygon.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO boundaries (session_id, revision, cleared, vertices, metadata, vertex_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE
		SET revision = EXCLUDED.revision, cleared = EXCLUDED.cleared,
		    vertices = EXCLUDED.vertices, metadata = EXCLUDED.metadata,
		    vertex_count = EXCLUDED.vertex_count, updated_at = EXCLUDED.updated_at
		WHERE boundaries.revision < EXCLUDED.revision
	`, b.SessionID, b.Revision, b.Cleared, vertices, metadata, len(polygon.Vertices), b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s already past revision %d", domain.ErrRevisionConflict, b.SessionID, b.Revision-1)
	}
	return nil
}

// Get returns the session's row or domain.ErrNotFound. A cleared row comes
// back with Cleared set and no vertices.
func (r *BoundaryRepo) Get(ctx context.Context, sessionID string) (*domain.StoredBoundary, error) {
	var (
		b                  domain.StoredBoundary
		vertices, metadata []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT session_id, revision, cleared, vertices, COALESCE(metadata, '{}'), updated_at
		FROM boundaries WHERE session_id = $1
	`, sessionID).Scan(&b.SessionID, &b.Revision, &b.Cleared, &vertices, &metadata, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if b.Cleared {
		return &b, nil
	}

	if err := json.Unmarshal(vertices, &b.Polygon.Vertices); err != nil {
		return nil, fmt.Errorf("unmarshal vertices: %w", err)
	}
	if err := json.Unmarshal(metadata, &b.Polygon.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(b.Polygon.Metadata) == 0 {
		b.Polygon.Metadata = nil
	}
	return &b, nil
}

// List returns persisted sessions, most recently updated first.
func (r *BoundaryRepo) List(ctx context.Context, limit, offset int) ([]domain.SessionInfo, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_id, NOT cleared, revision, updated_at
		FROM boundaries
		ORDER BY updated_at DESC, session_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.SessionInfo{}
	for rows.Next() {
		var s domain.SessionInfo
		if err := rows.Scan(&s.ID, &s.HasBoundary, &s.Revision, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Count returns the number of persisted sessions, cleared ones included.
func (r *BoundaryRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM boundaries`).Scan(&n)
	return n, err
}

func nonNilVertices(v []domain.Coordinate) []domain.Coordinate {
	if v == nil {
		return []domain.Coordinate{}
	}
	return v
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
