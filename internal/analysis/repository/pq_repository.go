package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

type jobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) analysis.Repository {
	return &jobRepo{
		db: db,
	}
}

func (r *jobRepo) CreateJob(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisJob, error) {
	created := &models.AnalysisJob{}
	if err := r.db.QueryRowxContext(
		ctx,
		createJobQuery,
		job.UserID,
		job.VideoURL,
		job.StrokeType,
		job.CropRegion,
		job.TargetPoint,
		job.Step,
		job.RequestPayload,
	).StructScan(created); err != nil {
		return nil, errors.Wrap(err, "jobRepo.CreateJob")
	}
	return created, nil
}

func (r *jobRepo) GetJobByID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{}
	if err := r.db.QueryRowxContext(
		ctx,
		getJobByIDQuery,
		jobID,
	).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, analysis.ErrJobNotFound
		}
		return nil, errors.Wrap(err, "jobRepo.GetJobByID")
	}
	return job, nil
}

func (r *jobRepo) FindActiveJob(ctx context.Context, videoURL string, owner uuid.NullUUID, since time.Time) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{}
	if err := r.db.QueryRowxContext(
		ctx,
		findActiveJobQuery,
		videoURL,
		since,
		owner,
	).StructScan(job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, analysis.ErrJobNotFound
		}
		return nil, errors.Wrap(err, "jobRepo.FindActiveJob")
	}
	return job, nil
}

func (r *jobRepo) GetJobsByUser(ctx context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.JobList, error) {
	var totalCount int
	if err := r.db.GetContext(
		ctx,
		&totalCount,
		getTotalJobsByUserQuery,
		userID,
	); err != nil {
		return nil, errors.Wrap(err, "jobRepo.GetJobsByUser.count")
	}
	if totalCount == 0 {
		return &models.JobList{
			Jobs:       make([]*models.AnalysisJob, 0),
			TotalCount: 0,
			Page:       pagination.GetPage(),
			PageSize:   pagination.GetSize(),
			HasMore:    false,
		}, nil
	}

	rows, err := r.db.QueryxContext(
		ctx,
		getJobsByUserQuery,
		userID,
		pagination.GetOffset(),
		pagination.GetLimit(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "jobRepo.GetJobsByUser.query")
	}
	defer rows.Close()

	jobs := make([]*models.AnalysisJob, 0, pagination.GetSize())
	for rows.Next() {
		var job models.AnalysisJob
		if err = rows.StructScan(&job); err != nil {
			return nil, errors.Wrap(err, "jobRepo.GetJobsByUser.scan")
		}
		jobs = append(jobs, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "jobRepo.GetJobsByUser.rows")
	}
	return &models.JobList{
		Jobs:       jobs,
		TotalCount: totalCount,
		Page:       pagination.GetPage(),
		PageSize:   pagination.GetSize(),
		HasMore:    utils.GetHasMore(pagination.GetPage(), totalCount, pagination.GetSize()),
	}, nil
}

// MarkProcessing is a conditional transition: only a pending job moves to
// processing. A false return means the row was not in the expected state.
func (r *jobRepo) MarkProcessing(ctx context.Context, jobID uuid.UUID, workerJobID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, markProcessingQuery, jobID, workerJobID)
	if err != nil {
		return false, errors.Wrap(err, "jobRepo.MarkProcessing")
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}

// CompleteJob writes the terminal success fields only if the job is not
// already terminal. First writer wins; the losing writer sees false, nil.
func (r *jobRepo) CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.JobResult) (bool, error) {
	res, err := r.db.ExecContext(
		ctx,
		completeJobQuery,
		jobID,
		result.Payload,
		result.ResultVideoURL,
		result.ProcessingTimeSec,
		result.TotalFrames,
	)
	if err != nil {
		return false, errors.Wrap(err, "jobRepo.CompleteJob")
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}

// FailJob mirrors CompleteJob for the failure outcome, preserving the
// worker-supplied message verbatim.
func (r *jobRepo) FailJob(ctx context.Context, jobID uuid.UUID, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx, failJobQuery, jobID, message)
	if err != nil {
		return false, errors.Wrap(err, "jobRepo.FailJob")
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}
