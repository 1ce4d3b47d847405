package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/config"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/logger"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

const presignExpiry = time.Hour

type analysisUC struct {
	cfg       *config.Config
	jobRepo   analysis.Repository
	redisRepo analysis.RedisRepository
	awsRepo   analysis.AWSRepository
	worker    analysis.WorkerClient
	logger    logger.Logger
}

func NewAnalysisUseCase(
	cfg *config.Config,
	jobRepo analysis.Repository,
	redisRepo analysis.RedisRepository,
	awsRepo analysis.AWSRepository,
	worker analysis.WorkerClient,
	log logger.Logger,
) analysis.UseCase {
	return &analysisUC{
		cfg:       cfg,
		jobRepo:   jobRepo,
		redisRepo: redisRepo,
		awsRepo:   awsRepo,
		worker:    worker,
		logger:    log,
	}
}

func (u *analysisUC) SubmitAnalysis(ctx context.Context, input *models.SubmitAnalysisInput, owner uuid.NullUUID) (*models.AnalysisJob, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		u.logger.Errorf("SubmitAnalysis - ValidateStruct error: %v", err)
		return nil, analysis.NewValidationError("invalid input: %v", err)
	}

	videoURL, err := u.resolveVideoURL(ctx, input)
	if err != nil {
		return nil, err
	}

	// Dedup: a retried or double-fired client request within the window maps
	// onto the already-active job instead of dispatching twice. Presigned
	// URLs carry per-request signatures, so the match ignores the query.
	since := time.Now().Add(-u.cfg.Analysis.DedupWindow())
	existing, err := u.jobRepo.FindActiveJob(ctx, canonicalVideoURL(videoURL), owner, since)
	if err == nil {
		u.logger.Infof("SubmitAnalysis - duplicate submission for %s, reusing job %s", videoURL, existing.JobID)
		if input.Mode == models.ModePull && !existing.Status.Terminal() && existing.WorkerJobID != "" {
			return u.waitForCompletion(ctx, existing.JobID, existing.WorkerJobID)
		}
		return existing, nil
	}
	if !errors.Is(err, analysis.ErrJobNotFound) {
		u.logger.Errorf("SubmitAnalysis - FindActiveJob error: %v", err)
		return nil, &analysis.PersistenceError{Op: "dedup lookup", Err: err}
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot submit input: %w", err)
	}
	step := input.Step
	if step == 0 {
		step = u.cfg.Analysis.DefaultStep
	}

	job, err := u.jobRepo.CreateJob(ctx, &models.AnalysisJob{
		UserID:         owner,
		VideoURL:       videoURL,
		StrokeType:     input.StrokeType,
		CropRegion:     input.CropRegion,
		TargetPoint:    input.TargetPoint,
		Step:           step,
		RequestPayload: types.JSONText(payload),
	})
	if err != nil {
		u.logger.Errorf("SubmitAnalysis - CreateJob error: %v", err)
		return nil, &analysis.PersistenceError{Op: "create", Err: err}
	}

	return u.dispatch(ctx, job, input.Mode)
}

// dispatch sends the job to the compute worker. A connection or launch
// failure leaves the job pending so the client may resubmit; it never marks
// the job failed, since the analysis itself never started.
func (u *analysisUC) dispatch(ctx context.Context, job *models.AnalysisJob, mode models.DeliveryMode) (*models.AnalysisJob, error) {
	req := &models.WorkerRequest{
		Input: models.WorkerInput{
			JobID:       job.JobID.String(),
			VideoURL:    job.VideoURL,
			StrokeType:  job.StrokeType,
			CropRegion:  job.CropRegion,
			TargetPoint: job.TargetPoint,
			Step:        job.Step,
		},
	}
	if mode != models.ModePull {
		req.Webhook = u.cfg.Worker.CallbackURL
	}

	ack, err := u.worker.Run(ctx, req)
	if err != nil {
		u.logger.Errorf("SubmitAnalysis - worker dispatch error for job %s: %v", job.JobID, err)
		return nil, &analysis.DispatchError{Err: err}
	}

	// Best effort: the terminal write is what correctness depends on, so a
	// failed processing mark is logged rather than failing the submission.
	applied, err := u.jobRepo.MarkProcessing(ctx, job.JobID, ack.ID)
	if err != nil {
		u.logger.Errorf("SubmitAnalysis - MarkProcessing error for job %s: %v", job.JobID, err)
	} else if applied {
		job.Status = models.JobStatusProcessing
		job.WorkerJobID = ack.ID
	}

	if mode == models.ModePull {
		return u.waitForCompletion(ctx, job.JobID, ack.ID)
	}
	return job, nil
}

// waitForCompletion polls until the job reaches a terminal state or the pull
// bound elapses. Each tick first re-reads the store, so a webhook that raced
// in wins and is returned as-is.
func (u *analysisUC) waitForCompletion(ctx context.Context, jobID uuid.UUID, workerJobID string) (*models.AnalysisJob, error) {
	start := time.Now()
	deadline := time.NewTimer(u.cfg.Analysis.PullTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(u.cfg.Analysis.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline.C:
			// Record the timeout on the job even if the caller's connection
			// is gone, so later readers see a consistent terminal record.
			failCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			msg := fmt.Sprintf("analysis timed out after %s", u.cfg.Analysis.PullTimeout())
			if err := u.FailJob(failCtx, jobID, msg); err != nil {
				u.logger.Errorf("waitForCompletion - FailJob on timeout error for job %s: %v", jobID, err)
			}
			cancel()
			return nil, &analysis.TimeoutError{JobID: jobID, Elapsed: time.Since(start)}

		case <-ticker.C:
			job, err := u.jobRepo.GetJobByID(ctx, jobID)
			if err != nil {
				u.logger.Warnf("waitForCompletion - GetJobByID error for job %s: %v", jobID, err)
				continue
			}
			if job.Status.Terminal() {
				return job, nil
			}

			status, err := u.worker.Status(ctx, workerJobID)
			if err != nil {
				u.logger.Warnf("waitForCompletion - worker status error for job %s: %v", jobID, err)
				continue
			}
			if out, ok := status.TerminalSuccess(); ok {
				result := &models.JobResult{
					Payload:           types.JSONText(status.Output),
					ResultVideoURL:    out.ResultVideoURL,
					ProcessingTimeSec: out.ProcessingTimeSec,
					TotalFrames:       out.TotalFrames,
				}
				if err = u.CompleteJob(ctx, jobID, result); err != nil {
					u.logger.Errorf("waitForCompletion - CompleteJob error for job %s: %v", jobID, err)
					continue
				}
			} else if status.TerminalFailure() {
				if err = u.FailJob(ctx, jobID, status.FailureMessage()); err != nil {
					u.logger.Errorf("waitForCompletion - FailJob error for job %s: %v", jobID, err)
					continue
				}
			} else {
				continue
			}

			job, err = u.jobRepo.GetJobByID(ctx, jobID)
			if err != nil {
				return nil, &analysis.PersistenceError{Op: "read after terminal write", Err: err}
			}
			return job, nil
		}
	}
}

// CompleteJob is idempotent: if the job is already terminal the write is a
// no-op and no error is reported, so a webhook delivery and a timeout can
// race safely.
func (u *analysisUC) CompleteJob(ctx context.Context, jobID uuid.UUID, result *models.JobResult) error {
	applied, err := u.jobRepo.CompleteJob(ctx, jobID, result)
	if err != nil {
		u.logger.Errorf("CompleteJob - store error for job %s: %v", jobID, err)
		return &analysis.PersistenceError{Op: "complete", Err: err}
	}
	if !applied {
		u.logger.Infof("CompleteJob - job %s already terminal, completion dropped", jobID)
		return nil
	}
	u.invalidateCache(ctx, jobID)
	u.logger.Infof("job %s completed, %d frames in %.1fs", jobID, result.TotalFrames, result.ProcessingTimeSec)
	return nil
}

func (u *analysisUC) FailJob(ctx context.Context, jobID uuid.UUID, message string) error {
	applied, err := u.jobRepo.FailJob(ctx, jobID, message)
	if err != nil {
		u.logger.Errorf("FailJob - store error for job %s: %v", jobID, err)
		return &analysis.PersistenceError{Op: "fail", Err: err}
	}
	if !applied {
		u.logger.Infof("FailJob - job %s already terminal, failure dropped", jobID)
		return nil
	}
	u.invalidateCache(ctx, jobID)
	u.logger.Infof("job %s failed: %s", jobID, message)
	return nil
}

func (u *analysisUC) GetJob(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	cached, err := u.redisRepo.GetJobCtx(ctx, jobID)
	if err != nil {
		u.logger.Warnf("GetJob - cache read error for job %s: %v", jobID, err)
	}
	if cached != nil {
		return cached, nil
	}

	job, err := u.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, analysis.ErrJobNotFound) {
			return nil, analysis.ErrJobNotFound
		}
		u.logger.Errorf("GetJob - store error for job %s: %v", jobID, err)
		return nil, &analysis.PersistenceError{Op: "read", Err: err}
	}

	if err = u.redisRepo.SetJobCtx(ctx, job, u.cfg.Analysis.JobCacheTTL()); err != nil {
		u.logger.Warnf("GetJob - cache write error for job %s: %v", jobID, err)
	}
	return job, nil
}

func (u *analysisUC) ListJobs(ctx context.Context, owner uuid.UUID, pagination *utils.Pagination) (*models.JobList, error) {
	if pagination == nil {
		pagination = &utils.Pagination{Page: 1, Size: 10}
	}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.Size < 1 || pagination.Size > 100 {
		pagination.Size = 10
	}

	jobs, err := u.jobRepo.GetJobsByUser(ctx, owner, pagination)
	if err != nil {
		u.logger.Errorf("ListJobs - store error for user %s: %v", owner, err)
		return nil, &analysis.PersistenceError{Op: "list", Err: err}
	}
	return jobs, nil
}

// resolveVideoURL turns the submitted reference into a worker-fetchable URL
// and enforces the trusted-origin allow list. The allow list is a security
// boundary: the worker downloads whatever URL it is handed.
func (u *analysisUC) resolveVideoURL(ctx context.Context, input *models.SubmitAnalysisInput) (string, error) {
	videoURL := input.VideoURL
	if videoURL == "" && input.VideoKey == "" {
		return "", analysis.NewValidationError("either video_url or video_key is required")
	}
	if videoURL == "" {
		presigned, err := u.awsRepo.GetPresignedURL(ctx, u.cfg.S3.InputBucket, input.VideoKey, presignExpiry)
		if err != nil {
			u.logger.Errorf("SubmitAnalysis - presign error for key %s: %v", input.VideoKey, err)
			return "", analysis.NewValidationError("cannot resolve video_key: %v", err)
		}
		videoURL = presigned
	}

	for _, origin := range u.cfg.Analysis.AllowedVideoOrigins {
		if strings.HasPrefix(videoURL, origin) {
			return videoURL, nil
		}
	}
	u.logger.Warnf("SubmitAnalysis - rejected video url with untrusted origin: %s", videoURL)
	return "", analysis.NewValidationError("video origin is not allowed")
}

func canonicalVideoURL(videoURL string) string {
	if idx := strings.IndexByte(videoURL, '?'); idx >= 0 {
		return videoURL[:idx]
	}
	return videoURL
}

func (u *analysisUC) invalidateCache(ctx context.Context, jobID uuid.UUID) {
	if err := u.redisRepo.DeleteJobCtx(ctx, jobID); err != nil {
		u.logger.Warnf("cache invalidation error for job %s: %v", jobID, err)
	}
}
