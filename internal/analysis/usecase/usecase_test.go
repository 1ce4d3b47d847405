package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/config"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- nop logger ---

type nopLogger struct{}

func (nopLogger) InitLogger()                                  {}
func (nopLogger) Debug(args ...interface{})                    {}
func (nopLogger) Debugf(template string, args ...interface{})  {}
func (nopLogger) Info(args ...interface{})                     {}
func (nopLogger) Infof(template string, args ...interface{})   {}
func (nopLogger) Warn(args ...interface{})                     {}
func (nopLogger) Warnf(template string, args ...interface{})   {}
func (nopLogger) Error(args ...interface{})                    {}
func (nopLogger) Errorf(template string, args ...interface{})  {}
func (nopLogger) DPanic(args ...interface{})                   {}
func (nopLogger) DPanicf(template string, args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{})                    {}
func (nopLogger) Fatalf(template string, args ...interface{})  {}

// --- in-memory job repo with the same guarded transitions as the SQL store ---

type mockJobRepo struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*models.AnalysisJob
	createErr error
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[uuid.UUID]*models.AnalysisJob)}
}

func (m *mockJobRepo) CreateJob(_ context.Context, job *models.AnalysisJob) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	j := *job
	j.JobID = uuid.New()
	j.Status = models.JobStatusPending
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	m.jobs[j.JobID] = &j
	cp := j
	return &cp, nil
}

func (m *mockJobRepo) GetJobByID(_ context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, analysis.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) FindActiveJob(_ context.Context, videoURL string, owner uuid.NullUUID, since time.Time) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		stored := j.VideoURL
		if idx := strings.IndexByte(stored, '?'); idx >= 0 {
			stored = stored[:idx]
		}
		if stored != videoURL {
			continue
		}
		if j.Status.Terminal() {
			continue
		}
		if j.CreatedAt.Before(since) {
			continue
		}
		if j.UserID != owner {
			continue
		}
		cp := *j
		return &cp, nil
	}
	return nil, analysis.ErrJobNotFound
}

func (m *mockJobRepo) GetJobsByUser(_ context.Context, userID uuid.UUID, pagination *utils.Pagination) (*models.JobList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]*models.AnalysisJob, 0)
	for _, j := range m.jobs {
		if j.UserID.Valid && j.UserID.UUID == userID {
			cp := *j
			jobs = append(jobs, &cp)
		}
	}
	return &models.JobList{Jobs: jobs, TotalCount: len(jobs), Page: pagination.GetPage(), PageSize: pagination.GetSize()}, nil
}

func (m *mockJobRepo) MarkProcessing(_ context.Context, jobID uuid.UUID, workerJobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobStatusPending {
		return false, nil
	}
	j.Status = models.JobStatusProcessing
	j.WorkerJobID = workerJobID
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockJobRepo) CompleteJob(_ context.Context, jobID uuid.UUID, result *models.JobResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.Status = models.JobStatusCompleted
	j.Result = result.Payload
	j.ResultVideoURL = result.ResultVideoURL
	j.ProcessingTimeSec = result.ProcessingTimeSec
	j.TotalFrames = result.TotalFrames
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockJobRepo) FailJob(_ context.Context, jobID uuid.UUID, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.Status = models.JobStatusFailed
	j.ErrorMessage = message
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockJobRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *mockJobRepo) backdate(jobID uuid.UUID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok {
		j.CreatedAt = j.CreatedAt.Add(-d)
	}
}

// --- nop cache ---

type mockRedisRepo struct{}

func (mockRedisRepo) GetJobCtx(context.Context, uuid.UUID) (*models.AnalysisJob, error) {
	return nil, nil
}
func (mockRedisRepo) SetJobCtx(context.Context, *models.AnalysisJob, time.Duration) error {
	return nil
}
func (mockRedisRepo) DeleteJobCtx(context.Context, uuid.UUID) error { return nil }

// --- presigner ---

type mockAwsRepo struct{}

func (mockAwsRepo) GetPresignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://trusted/%s/%s?X-Amz-Signature=abc123", bucket, key), nil
}

// --- worker client ---

type mockWorkerClient struct {
	mu       sync.Mutex
	runCalls []*models.WorkerRequest
	runFn    func(req *models.WorkerRequest) (*models.WorkerAck, error)
	statusFn func(workerJobID string) (*models.WorkerStatusResponse, error)
}

func (m *mockWorkerClient) Run(_ context.Context, req *models.WorkerRequest) (*models.WorkerAck, error) {
	m.mu.Lock()
	m.runCalls = append(m.runCalls, req)
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(req)
	}
	return &models.WorkerAck{ID: "worker-1", Status: models.WorkerStatusInQueue}, nil
}

func (m *mockWorkerClient) Status(_ context.Context, workerJobID string) (*models.WorkerStatusResponse, error) {
	if m.statusFn != nil {
		return m.statusFn(workerJobID)
	}
	return &models.WorkerStatusResponse{ID: workerJobID, Status: models.WorkerStatusInProgress}, nil
}

func (m *mockWorkerClient) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runCalls)
}

// --- fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		S3: config.S3Config{InputBucket: "uploads"},
		Worker: config.WorkerConfig{
			Endpoint:    "http://worker",
			CallbackURL: "http://api/api/v1/analysis/webhook",
		},
		Analysis: config.AnalysisConfig{
			AllowedVideoOrigins: []string{"https://trusted/"},
			DedupWindowMinutes:  10,
			PollIntervalSeconds: 1,
			PullTimeoutSeconds:  5,
			DefaultStep:         3,
			JobCacheTTLSeconds:  30,
		},
	}
}

func newTestUC(cfg *config.Config, repo *mockJobRepo, wc *mockWorkerClient) analysis.UseCase {
	return NewAnalysisUseCase(cfg, repo, mockRedisRepo{}, mockAwsRepo{}, wc, nopLogger{})
}

func pushInput(videoURL string) *models.SubmitAnalysisInput {
	return &models.SubmitAnalysisInput{
		VideoURL:   videoURL,
		StrokeType: "serve",
		Mode:       models.ModePush,
	}
}

func successOutput(frames int) json.RawMessage {
	out, _ := json.Marshal(map[string]interface{}{
		"status":                 "success",
		"summary":                map[string]interface{}{"score": 0.81},
		"total_frames_processed": frames,
		"processing_time_sec":    1.2,
		"result_video_url":       "https://trusted/results/out.mp4",
	})
	return out
}

// --- submission gate ---

func TestSubmitAnalysis_MissingStrokeType(t *testing.T) {
	repo := newMockJobRepo()
	uc := newTestUC(testConfig(), repo, &mockWorkerClient{})

	_, err := uc.SubmitAnalysis(context.Background(), &models.SubmitAnalysisInput{
		VideoURL: "https://trusted/a.mp4",
	}, uuid.NullUUID{})

	var vErr *analysis.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, repo.count(), "validation failure must not create a row")
}

func TestSubmitAnalysis_MissingVideoReference(t *testing.T) {
	repo := newMockJobRepo()
	uc := newTestUC(testConfig(), repo, &mockWorkerClient{})

	_, err := uc.SubmitAnalysis(context.Background(), &models.SubmitAnalysisInput{
		StrokeType: "serve",
	}, uuid.NullUUID{})

	var vErr *analysis.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, repo.count())
}

func TestSubmitAnalysis_UntrustedOriginRejected(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)

	_, err := uc.SubmitAnalysis(context.Background(), pushInput("https://evil.example.com/a.mp4"), uuid.NullUUID{})

	var vErr *analysis.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, repo.count(), "rejected origin must not create a row")
	assert.Equal(t, 0, wc.runCount(), "rejected origin must not dispatch")
}

func TestSubmitAnalysis_VideoKeyResolvedAndAllowed(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)

	job, err := uc.SubmitAnalysis(context.Background(), &models.SubmitAnalysisInput{
		VideoKey:   "u1/rally.mp4",
		StrokeType: "dink",
		Mode:       models.ModePush,
	}, uuid.NullUUID{})

	require.NoError(t, err)
	assert.Contains(t, job.VideoURL, "https://trusted/uploads/u1/rally.mp4")
}

// --- dedup ---

func TestSubmitAnalysis_DuplicateReturnsSameJob(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)
	owner := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	first, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), owner)
	require.NoError(t, err)

	second, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), owner)
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, 1, repo.count(), "duplicate submission must not create a second row")
	assert.Equal(t, 1, wc.runCount(), "duplicate submission must not re-dispatch")
}

func TestSubmitAnalysis_DifferentOwnerNotDeduplicated(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)

	first, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"),
		uuid.NullUUID{UUID: uuid.New(), Valid: true})
	require.NoError(t, err)

	second, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"),
		uuid.NullUUID{UUID: uuid.New(), Valid: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Equal(t, 2, repo.count())
}

func TestSubmitAnalysis_ExpiredWindowNotDeduplicated(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)
	owner := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	first, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), owner)
	require.NoError(t, err)
	repo.backdate(first.JobID, 11*time.Minute)

	second, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), owner)
	require.NoError(t, err)

	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Equal(t, 2, repo.count())
}

// --- dispatch ---

func TestSubmitAnalysis_PushMode(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{}
	uc := newTestUC(testConfig(), repo, wc)

	job, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), uuid.NullUUID{})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, "worker-1", job.WorkerJobID)

	require.Equal(t, 1, wc.runCount())
	req := wc.runCalls[0]
	assert.Equal(t, job.JobID.String(), req.Input.JobID, "worker must be able to echo the job id")
	assert.Equal(t, "http://api/api/v1/analysis/webhook", req.Webhook)
	assert.Equal(t, 3, req.Input.Step, "default step applied")
}

func TestSubmitAnalysis_DispatchErrorLeavesJobPending(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{
		runFn: func(*models.WorkerRequest) (*models.WorkerAck, error) {
			return nil, errors.New("connection refused")
		},
	}
	uc := newTestUC(testConfig(), repo, wc)

	_, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), uuid.NullUUID{})

	var dErr *analysis.DispatchError
	require.True(t, errors.As(err, &dErr))

	require.Equal(t, 1, repo.count())
	for id := range repo.jobs {
		job, getErr := repo.GetJobByID(context.Background(), id)
		require.NoError(t, getErr)
		assert.Equal(t, models.JobStatusPending, job.Status, "dispatch failure must leave the job pending, not failed")
	}
}

func TestSubmitAnalysis_PullModeCompletes(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{
		statusFn: func(workerJobID string) (*models.WorkerStatusResponse, error) {
			return &models.WorkerStatusResponse{
				ID:     workerJobID,
				Status: models.WorkerStatusCompleted,
				Output: successOutput(42),
			}, nil
		},
	}
	uc := newTestUC(testConfig(), repo, wc)

	input := pushInput("https://trusted/a.mp4")
	input.Mode = models.ModePull

	start := time.Now()
	job, err := uc.SubmitAnalysis(context.Background(), input, uuid.NullUUID{})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 42, job.TotalFrames)
	assert.InDelta(t, 1.2, job.ProcessingTimeSec, 0.001)
	assert.NotEmpty(t, job.Result)
	assert.Less(t, time.Since(start), 3*time.Second, "pull mode must return on the first terminal poll, not at the bound")
}

func TestSubmitAnalysis_PullModeWorkerFailure(t *testing.T) {
	repo := newMockJobRepo()
	wc := &mockWorkerClient{
		statusFn: func(workerJobID string) (*models.WorkerStatusResponse, error) {
			return &models.WorkerStatusResponse{
				ID:     workerJobID,
				Status: models.WorkerStatusCompleted,
				Output: json.RawMessage(`{"error": "Failed to download video from URL"}`),
			}, nil
		},
	}
	uc := newTestUC(testConfig(), repo, wc)

	input := pushInput("https://trusted/a.mp4")
	input.Mode = models.ModePull

	job, err := uc.SubmitAnalysis(context.Background(), input, uuid.NullUUID{})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "Failed to download video from URL", job.ErrorMessage, "worker message preserved verbatim")
}

// --- timeout guard ---

func TestSubmitAnalysis_PullModeTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.PullTimeoutSeconds = 1
	cfg.Analysis.PollIntervalSeconds = 2

	repo := newMockJobRepo()
	uc := newTestUC(cfg, repo, &mockWorkerClient{})

	input := pushInput("https://trusted/a.mp4")
	input.Mode = models.ModePull

	_, err := uc.SubmitAnalysis(context.Background(), input, uuid.NullUUID{})

	var tErr *analysis.TimeoutError
	require.True(t, errors.As(err, &tErr))

	job, getErr := repo.GetJobByID(context.Background(), tErr.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "timed out")
}

// --- completion reconciler ---

func TestCompleteThenFailIsNoOp(t *testing.T) {
	repo := newMockJobRepo()
	uc := newTestUC(testConfig(), repo, &mockWorkerClient{})

	job, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), uuid.NullUUID{})
	require.NoError(t, err)

	result := &models.JobResult{Payload: types.JSONText(successOutput(10)), TotalFrames: 10}
	require.NoError(t, uc.CompleteJob(context.Background(), job.JobID, result))
	require.NoError(t, uc.FailJob(context.Background(), job.JobID, "timed out"), "losing writer must observe a no-op, not an error")

	got, err := uc.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestConcurrentTerminalWritesExactlyOneWins(t *testing.T) {
	repo := newMockJobRepo()
	uc := newTestUC(testConfig(), repo, &mockWorkerClient{})

	job, err := uc.SubmitAnalysis(context.Background(), pushInput("https://trusted/a.mp4"), uuid.NullUUID{})
	require.NoError(t, err)

	result := &models.JobResult{Payload: types.JSONText(successOutput(10)), TotalFrames: 10}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = uc.CompleteJob(context.Background(), job.JobID, result)
	}()
	go func() {
		defer wg.Done()
		errs[1] = uc.FailJob(context.Background(), job.JobID, "timed out")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := uc.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	require.True(t, got.Status.Terminal())
	if got.Status == models.JobStatusCompleted {
		assert.Empty(t, got.ErrorMessage)
		assert.Equal(t, 10, got.TotalFrames)
	} else {
		assert.Equal(t, "timed out", got.ErrorMessage)
		assert.Empty(t, got.Result)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	uc := newTestUC(testConfig(), newMockJobRepo(), &mockWorkerClient{})

	_, err := uc.GetJob(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, analysis.ErrJobNotFound))
}
