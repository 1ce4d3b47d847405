package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/models"
)

const jobCachePrefix = "analysis:job:"

type jobRedisRepo struct {
	redisClient *redis.Client
}

func NewJobRedisRepo(redisClient *redis.Client) analysis.RedisRepository {
	return &jobRedisRepo{
		redisClient: redisClient,
	}
}

func (r *jobRedisRepo) GetJobCtx(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	jobBytes, err := r.redisClient.Get(ctx, jobCachePrefix+jobID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "jobRedisRepo.GetJobCtx")
	}
	job := &models.AnalysisJob{}
	if err = json.Unmarshal(jobBytes, job); err != nil {
		return nil, errors.Wrap(err, "jobRedisRepo.GetJobCtx.unmarshal")
	}
	return job, nil
}

func (r *jobRedisRepo) SetJobCtx(ctx context.Context, job *models.AnalysisJob, ttl time.Duration) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "jobRedisRepo.SetJobCtx.marshal")
	}
	if err = r.redisClient.Set(ctx, jobCachePrefix+job.JobID.String(), jobBytes, ttl).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.SetJobCtx")
	}
	return nil
}

func (r *jobRedisRepo) DeleteJobCtx(ctx context.Context, jobID uuid.UUID) error {
	if err := r.redisClient.Del(ctx, jobCachePrefix+jobID.String()).Err(); err != nil {
		return errors.Wrap(err, "jobRedisRepo.DeleteJobCtx")
	}
	return nil
}
