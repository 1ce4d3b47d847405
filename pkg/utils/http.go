package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OwnerCtxKey struct{}

// GetOwnerFromCtx returns the authenticated owner id, if the request carried
// one. Anonymous submissions are allowed, so absence is not an error.
func GetOwnerFromCtx(ctx context.Context) uuid.NullUUID {
	owner, ok := ctx.Value(OwnerCtxKey{}).(uuid.UUID)
	if !ok {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: owner, Valid: true}
}

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func GetIPAddress(c echo.Context) string {
	return c.Request().RemoteAddr
}
