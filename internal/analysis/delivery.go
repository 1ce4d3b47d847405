package analysis

import "github.com/labstack/echo/v4"

type Handlers interface {
	SubmitAnalysis() echo.HandlerFunc
	GetJob() echo.HandlerFunc
	ListJobs() echo.HandlerFunc
	Webhook() echo.HandlerFunc
}
