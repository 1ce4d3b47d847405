package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

// Repository is the durable job store. Transition methods are single
// conditional writes; the bool result reports whether the write applied.
type Repository interface {
	CreateJob(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisJob, error)
	GetJobByID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
	FindActiveJob(ctx context.Context, videoURL string, owner uuid.NullUUID, since time.Time) (*models.AnalysisJob, error)
	GetJobsByUser(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.JobList, error)

	// MarkProcessing transitions pending -> processing and records the
	// worker-assigned handle.
	MarkProcessing(ctx context.Context, jobID uuid.UUID, workerJobID string) (bool, error)
	// CompleteJob writes the terminal success fields unless the job is
	// already terminal.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.JobResult) (bool, error)
	// FailJob writes the terminal failure fields unless the job is already
	// terminal.
	FailJob(ctx context.Context, jobID uuid.UUID, message string) (bool, error)
}
