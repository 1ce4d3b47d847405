package http

import (
	"github.com/labstack/echo/v4"
	"github.com/strikesense/analysis-backend/internal/analysis"
	"github.com/strikesense/analysis-backend/internal/middleware"
)

func MapAnalysisRoutes(analysisGroup *echo.Group, h analysis.Handlers, mw *middleware.MiddlewareManager) {
	analysisGroup.POST("/submit", h.SubmitAnalysis(), mw.OwnerMiddleware)
	analysisGroup.GET("/list", h.ListJobs(), mw.OwnerMiddleware)
	analysisGroup.GET("/:job_id", h.GetJob())
	analysisGroup.POST("/webhook", h.Webhook())
}
