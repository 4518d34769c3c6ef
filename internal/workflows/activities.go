package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
)

const (
	// nonRetryableDecode tags decode failures; a malformed file stays malformed.
	nonRetryableDecode = "FormatError"
	// supersededChange tags a notify for a revision that is no longer current.
	supersededChange = "RevisionSuperseded"
)

// BoundaryActivities holds the activity implementations for the import workflow.
type BoundaryActivities struct {
	Boundaries *usecases.BoundaryService
}

// DecodeBoundary turns the uploaded payload into a polygon.
func (a *BoundaryActivities) DecodeBoundary(ctx context.Context, input ImportInput) (domain.BoundaryPolygon, error) {
	p, _, err := a.Boundaries.Decode(ctx, input.Format, input.Filename, input.Data)
	if err != nil {
		var fe *domain.FormatError
		if errors.As(err, &fe) || errors.Is(err, domain.ErrUnknownFormat) {
			return domain.BoundaryPolygon{}, temporal.NewNonRetryableApplicationError(err.Error(), nonRetryableDecode, err)
		}
		return domain.BoundaryPolygon{}, fmt.Errorf("decode boundary: %w", err)
	}
	return p, nil
}

// ValidateBoundary runs the geometric rules.
func (a *BoundaryActivities) ValidateBoundary(_ context.Context, p domain.BoundaryPolygon) (domain.ValidationReport, error) {
	return a.Boundaries.Validate(p), nil
}

// SnapshotBoundary returns the session's current polygon, or nil when empty.
func (a *BoundaryActivities) SnapshotBoundary(ctx context.Context, sessionID string) (*domain.BoundaryPolygon, error) {
	p, _, err := a.Boundaries.Current(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", sessionID, err)
	}
	return &p, nil
}

// ApplyBoundary stores the polygon and returns the new revision. The change
// is announced separately by NotifyBoundary.
func (a *BoundaryActivities) ApplyBoundary(ctx context.Context, sessionID string, p domain.BoundaryPolygon) (int64, error) {
	change, err := a.Boundaries.Apply(ctx, sessionID, p, false)
	if err != nil {
		return 0, fmt.Errorf("apply boundary %s: %w", sessionID, err)
	}
	return change.Revision, nil
}

// NotifyBoundary publishes the change that produced revision. A session that
// has moved on fails with a non-retryable superseded error.
func (a *BoundaryActivities) NotifyBoundary(ctx context.Context, sessionID string, revision int64) error {
	err := a.Boundaries.Notify(ctx, sessionID, revision)
	if errors.Is(err, domain.ErrRevisionConflict) {
		return temporal.NewNonRetryableApplicationError(err.Error(), supersededChange, err)
	}
	return err
}

// RestoreBoundary puts the snapshot back (saga compensation) unless a newer
// change has replaced revision since.
func (a *BoundaryActivities) RestoreBoundary(ctx context.Context, sessionID string, revision int64, previous *domain.BoundaryPolygon) error {
	err := a.Boundaries.Restore(ctx, sessionID, revision, previous)
	if errors.Is(err, domain.ErrRevisionConflict) {
		activity.GetLogger(ctx).Warn("boundary superseded, compensation skipped", "session", sessionID, "revision", revision)
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore boundary %s: %w", sessionID, err)
	}
	activity.GetLogger(ctx).Info("boundary restored (saga compensation)", "session", sessionID, "cleared", previous == nil)
	return nil
}
