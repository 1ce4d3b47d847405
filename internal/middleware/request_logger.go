package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		req := c.Request()
		res := c.Response()
		mw.logger.Infof("RequestID: %s, Method: %s, URI: %s, Status: %v, Size: %v, Time: %s",
			utils.GetRequestID(c), req.Method, req.URL, res.Status, res.Size, time.Since(start),
		)
		return err
	}
}
