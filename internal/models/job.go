package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type DeliveryMode string

const (
	ModePush DeliveryMode = "push"
	ModePull DeliveryMode = "pull"
)

// AnalysisJob is one tracked unit of submitted stroke analysis. Immutable
// inputs are set at creation; status only ever moves forward:
// pending -> processing -> completed|failed.
type AnalysisJob struct {
	JobID             uuid.UUID      `json:"job_id" db:"job_id" validate:"omitempty"`
	UserID            uuid.NullUUID  `json:"user_id,omitempty" db:"user_id" validate:"omitempty"`
	VideoURL          string         `json:"video_url" db:"video_url" validate:"required"`
	StrokeType        string         `json:"stroke_type" db:"stroke_type" validate:"required"`
	CropRegion        string         `json:"crop_region,omitempty" db:"crop_region" validate:"omitempty"`
	TargetPoint       string         `json:"target_point,omitempty" db:"target_point" validate:"omitempty"`
	Step              int            `json:"step" db:"step" validate:"omitempty"`
	RequestPayload    types.JSONText `json:"-" db:"request_payload"`
	Status            JobStatus      `json:"status" db:"status" validate:"required"`
	WorkerJobID       string         `json:"worker_job_id,omitempty" db:"worker_job_id"`
	Result            types.JSONText `json:"result,omitempty" db:"result"`
	ResultVideoURL    string         `json:"result_video_url,omitempty" db:"result_video_url"`
	ErrorMessage      string         `json:"error_message,omitempty" db:"error_message"`
	ProcessingTimeSec float64        `json:"processing_time_sec,omitempty" db:"processing_time_sec"`
	TotalFrames       int            `json:"total_frames,omitempty" db:"total_frames"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// SubmitAnalysisInput is the request body of the submit endpoint. Either
// VideoURL or VideoKey must be set; VideoKey is resolved against the input
// bucket via a presigned URL.
type SubmitAnalysisInput struct {
	VideoURL    string       `json:"video_url" validate:"omitempty,url"`
	VideoKey    string       `json:"video_key" validate:"omitempty,lte=512"`
	StrokeType  string       `json:"stroke_type" validate:"required,oneof=serve groundstroke dink overhead footwork overall"`
	CropRegion  string       `json:"crop_region" validate:"omitempty,lte=64"`
	TargetPoint string       `json:"target_point" validate:"omitempty,lte=32"`
	Step        int          `json:"step" validate:"omitempty,min=1,max=30"`
	Mode        DeliveryMode `json:"mode" validate:"omitempty,oneof=push pull"`
}

// SubmitResult is what the submit endpoint returns in push mode, before the
// worker has finished.
type SubmitResult struct {
	JobID       uuid.UUID `json:"job_id"`
	Status      JobStatus `json:"status"`
	WorkerJobID string    `json:"worker_job_id,omitempty"`
}

type JobList struct {
	Jobs       []*AnalysisJob `json:"jobs"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	HasMore    bool           `json:"has_more"`
}

// JobResult carries the terminal fields written by a completion, extracted
// from the worker's output. Payload is kept opaque.
type JobResult struct {
	Payload           types.JSONText
	ResultVideoURL    string
	ProcessingTimeSec float64
	TotalFrames       int
}
