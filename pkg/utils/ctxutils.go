// pkg/utils/ctxutils.go

package utils

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"roster-sync/pkg/contextkeys"
	apperrors "roster-sync/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(int)
	if !ok {
		return 0, apperrors.ErrUnauthorized
	}
	return userID, nil
}

func ContextWithTimeout(ctx echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request().Context(), timeout)
}
