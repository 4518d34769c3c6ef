package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// ImportInput is the input for the boundary import workflow.
type ImportInput struct {
	SessionID     string
	Format        domain.Format
	Filename      string
	Data          []byte
	RejectInvalid bool
}

// ImportOutput reports the outcome of an asynchronous import.
type ImportOutput struct {
	SessionID string                  `json:"session_id"`
	Revision  int64                   `json:"revision"`
	Applied   bool                    `json:"applied"`
	Report    domain.ValidationReport `json:"validation"`
}

// ImportBoundaryWorkflow decodes an uploaded file, validates it, swaps it into
// the session and announces the change. If the announcement fails, the
// previous polygon is put back (saga compensation).
func ImportBoundaryWorkflow(ctx workflow.Context, input ImportInput) (ImportOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting boundary import", "session", input.SessionID, "format", input.Format)

	out := ImportOutput{SessionID: input.SessionID}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{nonRetryableDecode, supersededChange},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Decode
	var polygon domain.BoundaryPolygon
	if err := workflow.ExecuteActivity(ctx, "DecodeBoundary", input).Get(ctx, &polygon); err != nil {
		return out, err
	}

	// Step 2: Validate
	if err := workflow.ExecuteActivity(ctx, "ValidateBoundary", polygon).Get(ctx, &out.Report); err != nil {
		return out, err
	}
	if !out.Report.Valid && input.RejectInvalid {
		logger.Warn("boundary rejected by validation", "errors", out.Report.Errors)
		return out, nil
	}

	// Step 3: Snapshot the polygon being replaced
	var previous *domain.BoundaryPolygon
	if err := workflow.ExecuteActivity(ctx, "SnapshotBoundary", input.SessionID).Get(ctx, &previous); err != nil {
		return out, err
	}

	// Step 4: Apply without announcing
	if err := workflow.ExecuteActivity(ctx, "ApplyBoundary", input.SessionID, polygon).Get(ctx, &out.Revision); err != nil {
		return out, err
	}

	// Step 5: Announce
	err := workflow.ExecuteActivity(ctx, "NotifyBoundary", input.SessionID, out.Revision).Get(ctx, nil)
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == supersededChange {
		// A newer change replaced ours and announces itself.
		logger.Warn("boundary superseded before notification", "session", input.SessionID, "revision", out.Revision)
		out.Applied = true
		return out, nil
	}
	if err != nil {
		logger.Warn("change notification failed, restoring previous boundary", "error", err)
		// Compensate: restore the snapshot
		_ = workflow.ExecuteActivity(ctx, "RestoreBoundary", input.SessionID, out.Revision, previous).Get(ctx, nil)
		return out, err
	}

	out.Applied = true
	logger.Info("Boundary imported", "session", input.SessionID, "revision", out.Revision)
	return out, nil
}
