package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/models"
	"github.com/strikesense/analysis-backend/pkg/logger"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

type analysisHandler struct {
	analysisUC analysis.UseCase
	logger     logger.Logger
}

func NewAnalysisHandler(analysisUC analysis.UseCase, log logger.Logger) analysis.Handlers {
	return &analysisHandler{
		analysisUC: analysisUC,
		logger:     log,
	}
}

func (h *analysisHandler) SubmitAnalysis() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.SubmitAnalysisInput{}
		if err := c.Bind(input); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		}

		owner := utils.GetOwnerFromCtx(c.Request().Context())
		job, err := h.analysisUC.SubmitAnalysis(c.Request().Context(), input, owner)
		if err != nil {
			return h.errorResponse(c, err)
		}

		if job.Status.Terminal() {
			return c.JSON(http.StatusOK, job)
		}
		return c.JSON(http.StatusOK, &models.SubmitResult{
			JobID:       job.JobID,
			Status:      job.Status,
			WorkerJobID: job.WorkerJobID,
		})
	}
}

func (h *analysisHandler) GetJob() echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID, err := uuid.Parse(c.Param("job_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid job id"})
		}
		job, err := h.analysisUC.GetJob(c.Request().Context(), jobID)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

func (h *analysisHandler) ListJobs() echo.HandlerFunc {
	return func(c echo.Context) error {
		owner := utils.GetOwnerFromCtx(c.Request().Context())
		if !owner.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		jobs, err := h.analysisUC.ListJobs(c.Request().Context(), owner.UUID, pagination)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, jobs)
	}
}

// Webhook accepts the worker's completion callback. Delivery is idempotent:
// a retry that lands after the job is already terminal is still acked with
// success, so the worker never keeps retrying a no-op.
func (h *analysisHandler) Webhook() echo.HandlerFunc {
	return func(c echo.Context) error {
		callback := &models.WorkerStatusResponse{}
		if err := c.Bind(callback); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid callback payload"})
		}
		if callback.Input == nil || callback.Input.JobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Callback missing job id"})
		}
		jobID, err := uuid.Parse(callback.Input.JobID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid job id in callback"})
		}

		h.logger.Infof("webhook delivery for job %s, worker status: %s", jobID, callback.Status)

		if out, ok := callback.TerminalSuccess(); ok {
			err = h.analysisUC.CompleteJob(c.Request().Context(), jobID, &models.JobResult{
				Payload:           types.JSONText(callback.Output),
				ResultVideoURL:    out.ResultVideoURL,
				ProcessingTimeSec: out.ProcessingTimeSec,
				TotalFrames:       out.TotalFrames,
			})
		} else if callback.TerminalFailure() {
			err = h.analysisUC.FailJob(c.Request().Context(), jobID, callback.FailureMessage())
		}
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
}

func (h *analysisHandler) errorResponse(c echo.Context, err error) error {
	var validationErr *analysis.ValidationError
	var timeoutErr *analysis.TimeoutError
	var dispatchErr *analysis.DispatchError

	switch {
	case errors.Is(err, analysis.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Message})
	case errors.As(err, &timeoutErr):
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": timeoutErr.Error(),
			"hint":  "try a shorter video or a larger sampling step, then resubmit",
		})
	case errors.As(err, &dispatchErr):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": dispatchErr.Error()})
	default:
		h.logger.Errorf("unhandled error, RequestID: %s: %v", utils.GetRequestID(c), err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
