package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	analysisHttp "github.com/strikesense/analysis-backend/internal/analysis/delivery/http"
	analysisRepository "github.com/strikesense/analysis-backend/internal/analysis/repository"
	analysisUsecase "github.com/strikesense/analysis-backend/internal/analysis/usecase"
	analysisWorker "github.com/strikesense/analysis-backend/internal/analysis/worker"
	"github.com/strikesense/analysis-backend/internal/middleware"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	jobRepo := analysisRepository.NewJobRepo(s.db)
	jobRedisRepo := analysisRepository.NewJobRedisRepo(s.redisClient)
	awsRepo := analysisRepository.NewAwsRepository(s.s3Client, s.preSignClient)
	workerClient := analysisWorker.NewClient(s.cfg, s.logger)

	analysisUC := analysisUsecase.NewAnalysisUseCase(s.cfg, jobRepo, jobRedisRepo, awsRepo, workerClient, s.logger)

	analysisHandlers := analysisHttp.NewAnalysisHandler(analysisUC, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, []string{"*"}, s.logger)
	e.Use(mw.RequestLoggerMiddleware)

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	analysisGroup := v1.Group("/analysis")

	analysisHttp.MapAnalysisRoutes(analysisGroup, analysisHandlers, mw)

	health.GET("", func(c echo.Context) error {
		cpuPercent, memPercent := utils.GetSystemStats()
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "OK",
			"version":     s.cfg.Server.AppVersion,
			"cpu_percent": cpuPercent,
			"mem_percent": memPercent,
		})
	})
	return nil
}
