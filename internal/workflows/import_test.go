package workflows_test

import (
	"context"
	"errors"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/ports"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/workflows"
)

const (
	squareWKT   = "POLYGON((0 0, 0.002 0, 0.002 0.002, 0 0.002, 0 0))"
	smallWKT    = "POLYGON((0 0, 0.0001 0, 0.0001 0.0001, 0 0.0001, 0 0))"
	previousWKT = "POLYGON((10 10, 10.002 10, 10.002 10.002, 10 10.002, 10 10))"
)

type failingPublisher struct {
	err error
}

func (p *failingPublisher) PublishBoundaryChange(ctx context.Context, change *domain.BoundaryChange) error {
	return p.err
}

type recordingPublisher struct {
	changes []domain.BoundaryChange
}

func (p *recordingPublisher) PublishBoundaryChange(ctx context.Context, change *domain.BoundaryChange) error {
	p.changes = append(p.changes, *change)
	return nil
}

func newEnv(t *testing.T, publisher ports.EventPublisher) (*testsuite.TestWorkflowEnvironment, *usecases.BoundaryService) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	svc := usecases.NewBoundaryService(nil, nil, nil, nil, publisher, usecases.BoundaryConfig{})
	env.RegisterActivity(&workflows.BoundaryActivities{Boundaries: svc})
	return env, svc
}

func TestImportBoundaryWorkflow_Applies(t *testing.T) {
	env, svc := newEnv(t, nil)

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-1",
		Format:    domain.FormatWKT,
		Data:      []byte(squareWKT),
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("expected workflow to complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out workflows.ImportOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !out.Applied || out.Revision != 1 || !out.Report.Valid {
		t.Errorf("unexpected output %+v", out)
	}

	p, rev, err := svc.Current(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if rev != 1 || len(p.Vertices) != 4 {
		t.Errorf("expected 4 vertices at revision 1, got %d at %d", len(p.Vertices), rev)
	}
}

func TestImportBoundaryWorkflow_RejectsInvalid(t *testing.T) {
	env, svc := newEnv(t, nil)

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID:     "site-1",
		Format:        domain.FormatWKT,
		Data:          []byte(smallWKT),
		RejectInvalid: true,
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out workflows.ImportOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.Applied || out.Report.Valid {
		t.Errorf("expected rejected import, got %+v", out)
	}
	if _, _, err := svc.Current(context.Background(), "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected empty session, got %v", err)
	}
}

func TestImportBoundaryWorkflow_DecodeFailure(t *testing.T) {
	env, svc := newEnv(t, nil)

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-1",
		Format:    domain.FormatWKT,
		Data:      []byte("POINT(1 2)"),
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("expected workflow to complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected decode error")
	}
	if _, _, err := svc.Current(context.Background(), "site-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected store untouched, got %v", err)
	}
}

func TestImportBoundaryWorkflow_RestoresOnNotifyFailure(t *testing.T) {
	env, svc := newEnv(t, &failingPublisher{err: errors.New("jetstream unavailable")})

	ctx := context.Background()
	if _, err := svc.ImportWKT(ctx, "site-1", previousWKT); err != nil {
		t.Fatalf("seed: %v", err)
	}

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-1",
		Format:    domain.FormatWKT,
		Data:      []byte(squareWKT),
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("expected workflow to complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected notify error")
	}

	p, _, err := svc.Current(ctx, "site-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if p.Vertices[0] != (domain.Coordinate{Lat: 10, Lon: 10}) {
		t.Errorf("expected previous boundary restored, got %+v", p.Vertices[0])
	}
}

func TestImportBoundaryWorkflow_ClearsWhenNothingToRestore(t *testing.T) {
	env, svc := newEnv(t, &failingPublisher{err: errors.New("jetstream unavailable")})

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-2",
		Filename:  "site.csv",
		Data:      []byte("lat,lon\n0,0\n0,0.002\n0.002,0.002\n0.002,0\n"),
	})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected notify error")
	}
	if _, _, err := svc.Current(context.Background(), "site-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected session cleared by compensation, got %v", err)
	}
}

// replaceBefore imports wkt into the session right before the named activity runs.
func replaceBefore(t *testing.T, env *testsuite.TestWorkflowEnvironment, svc *usecases.BoundaryService, name, sessionID, wkt string) {
	t.Helper()
	env.SetOnActivityStartedListener(func(info *activity.Info, ctx context.Context, args converter.EncodedValues) {
		if info.ActivityType.Name != name {
			return
		}
		if _, err := svc.ImportWKT(context.Background(), sessionID, wkt); err != nil {
			t.Errorf("concurrent import: %v", err)
		}
	})
}

func TestImportBoundaryWorkflow_SupersededBeforeNotify(t *testing.T) {
	pub := &recordingPublisher{}
	env, svc := newEnv(t, pub)
	replaceBefore(t, env, svc, "NotifyBoundary", "site-1", previousWKT)

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-1",
		Format:    domain.FormatWKT,
		Data:      []byte(squareWKT),
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out workflows.ImportOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !out.Applied || out.Revision != 1 {
		t.Errorf("unexpected output %+v", out)
	}

	// Only the newer change is announced, and it is not rolled back.
	if len(pub.changes) != 1 || pub.changes[0].Revision != 2 {
		t.Errorf("expected only revision 2 published, got %+v", pub.changes)
	}
	p, rev, err := svc.Current(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if rev != 2 || p.Vertices[0] != (domain.Coordinate{Lat: 10, Lon: 10}) {
		t.Errorf("expected newer boundary at revision 2, got %+v at %d", p.Vertices[0], rev)
	}
}

func TestImportBoundaryWorkflow_CompensationSkipsNewerChange(t *testing.T) {
	env, svc := newEnv(t, &failingPublisher{err: errors.New("jetstream unavailable")})
	replaceBefore(t, env, svc, "RestoreBoundary", "site-1", previousWKT)

	env.ExecuteWorkflow(workflows.ImportBoundaryWorkflow, workflows.ImportInput{
		SessionID: "site-1",
		Format:    domain.FormatWKT,
		Data:      []byte(squareWKT),
	})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected notify error")
	}
	p, rev, err := svc.Current(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("expected the newer boundary to survive, got %v", err)
	}
	if rev != 2 || p.Vertices[0] != (domain.Coordinate{Lat: 10, Lon: 10}) {
		t.Errorf("expected revision 2 untouched, got %+v at %d", p.Vertices[0], rev)
	}
}
