package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/strikesense/analysis-backend/internal/models"
)

// RedisRepository caches job records for the read path. The dedup check and
// all transitions go straight to the store.
type RedisRepository interface {
	GetJobCtx(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
	SetJobCtx(ctx context.Context, job *models.AnalysisJob, ttl time.Duration) error
	DeleteJobCtx(ctx context.Context, jobID uuid.UUID) error
}
