package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Starter launches import workflows on a task queue.
type Starter struct {
	Client    client.Client
	TaskQueue string
}

// StartImport begins an ImportBoundaryWorkflow and returns its workflow and run ids.
func (s *Starter) StartImport(ctx context.Context, input ImportInput) (string, string, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("boundary-import-%s-%d", input.SessionID, time.Now().UnixNano()),
		TaskQueue: s.TaskQueue,
	}
	run, err := s.Client.ExecuteWorkflow(ctx, opts, ImportBoundaryWorkflow, input)
	if err != nil {
		return "", "", fmt.Errorf("start import workflow: %w", err)
	}
	return run.GetID(), run.GetRunID(), nil
}

// NewWorker registers the import workflow and its activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *BoundaryActivities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(ImportBoundaryWorkflow)
	w.RegisterActivity(acts)
	return w
}
