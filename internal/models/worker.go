package models

import "encoding/json"

// Remote worker job states (RunPod serverless API).
const (
	WorkerStatusInQueue    = "IN_QUEUE"
	WorkerStatusInProgress = "IN_PROGRESS"
	WorkerStatusCompleted  = "COMPLETED"
	WorkerStatusFailed     = "FAILED"
	WorkerStatusCancelled  = "CANCELLED"
	WorkerStatusTimedOut   = "TIMED_OUT"
)

// WorkerInput is the handler input forwarded to the compute worker. JobID is
// echoed back in callbacks so the webhook can locate the job row.
type WorkerInput struct {
	JobID       string `json:"job_id"`
	VideoURL    string `json:"video_url"`
	StrokeType  string `json:"stroke_type"`
	CropRegion  string `json:"crop_region,omitempty"`
	TargetPoint string `json:"target_point,omitempty"`
	Step        int    `json:"step"`
}

type WorkerRequest struct {
	Input   WorkerInput `json:"input"`
	Webhook string      `json:"webhook,omitempty"`
}

// WorkerAck is the worker's synchronous acceptance of a run request.
type WorkerAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WorkerOutput is the analysis result object produced by the worker handler.
// Only the meta fields are interpreted; the payload as a whole is stored
// opaquely on the job.
type WorkerOutput struct {
	Status            string  `json:"status"`
	Error             string  `json:"error,omitempty"`
	ProcessingTimeSec float64 `json:"processing_time_sec,omitempty"`
	TotalFrames       int     `json:"total_frames_processed,omitempty"`
	ResultVideoURL    string  `json:"result_video_url,omitempty"`
}

// WorkerStatusResponse is the response of the worker's /status endpoint and,
// with Input populated, the webhook callback body.
type WorkerStatusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Input  *WorkerInput    `json:"input,omitempty"`
}

// TerminalSuccess reports whether the worker finished and its handler
// reported a usable result.
func (r *WorkerStatusResponse) TerminalSuccess() (*WorkerOutput, bool) {
	if r.Status != WorkerStatusCompleted || len(r.Output) == 0 {
		return nil, false
	}
	var out WorkerOutput
	if err := json.Unmarshal(r.Output, &out); err != nil {
		return nil, false
	}
	if out.Error != "" || (out.Status != "" && out.Status != "success") {
		return nil, false
	}
	return &out, true
}

// FailureMessage extracts the worker-supplied error for a terminal failure,
// preferring the handler-level error over the platform-level one.
func (r *WorkerStatusResponse) FailureMessage() string {
	if len(r.Output) > 0 {
		var out WorkerOutput
		if err := json.Unmarshal(r.Output, &out); err == nil && out.Error != "" {
			return out.Error
		}
	}
	if r.Error != "" {
		return r.Error
	}
	return "analysis failed on worker"
}

// TerminalFailure reports whether the worker reached a state that can never
// produce a result.
func (r *WorkerStatusResponse) TerminalFailure() bool {
	switch r.Status {
	case WorkerStatusFailed, WorkerStatusCancelled, WorkerStatusTimedOut:
		return true
	}
	if r.Status == WorkerStatusCompleted {
		_, ok := r.TerminalSuccess()
		return !ok
	}
	return false
}
