package analysis

import (
	"context"

	"github.com/strikesense/analysis-backend/internal/models"
)

// WorkerClient talks to the remote compute endpoint that runs the analysis
// pipeline.
type WorkerClient interface {
	// Run starts a job on the worker and returns its acceptance handle.
	Run(ctx context.Context, req *models.WorkerRequest) (*models.WorkerAck, error)
	// Status reads the worker-side state of a previously started job.
	Status(ctx context.Context, workerJobID string) (*models.WorkerStatusResponse, error)
}
