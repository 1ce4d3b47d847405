package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/strikesense/analysis-backend/pkg/utils"
)

// OwnerMiddleware attaches the owning user id from a bearer token issued by
// the external identity provider. Tokens are optional: anonymous submissions
// are allowed, but a token that is present must be valid.
func (mw *MiddlewareManager) OwnerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		bearerHeader := c.Request().Header.Get("Authorization")
		if bearerHeader == "" {
			return next(c)
		}

		headerParts := strings.Split(bearerHeader, " ")
		if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
			mw.logger.Warnf("owner middleware - malformed authorization header, IP: %s", utils.GetIPAddress(c))
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		owner, err := utils.ValidateOwnerToken(headerParts[1], mw.cfg.Server.JwtSecretKey)
		if err != nil {
			mw.logger.Warnf("owner middleware - invalid token: %v", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		ctx := context.WithValue(c.Request().Context(), utils.OwnerCtxKey{}, owner)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
