package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

// UseCase is the analysis job orchestration surface: submission with
// deduplication, dispatch to the remote worker, and idempotent completion.
type UseCase interface {
	// SubmitAnalysis validates and dedups the input, creates the job row and
	// dispatches it. In push mode it returns once the worker acknowledges; in
	// pull mode it blocks until the job is terminal or the wait times out, and
	// the returned job carries the terminal record.
	SubmitAnalysis(ctx context.Context, input *models.SubmitAnalysisInput, owner uuid.NullUUID) (*models.AnalysisJob, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
	ListJobs(ctx context.Context, owner uuid.UUID, pagination *utils.Pagination) (*models.JobList, error)

	// CompleteJob and FailJob are the only writers of terminal state. Both are
	// idempotent: a job that is already terminal is left untouched and no
	// error is returned.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.JobResult) error
	FailJob(ctx context.Context, jobID uuid.UUID, message string) error
}
