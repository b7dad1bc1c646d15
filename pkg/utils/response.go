package utils

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "roster-sync/pkg/errors"
)

type HttpResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	return ctx.JSON(code, &HttpResponse{
		Status:  true,
		Body:    body,
		Message: message,
	})
}

// ErrorResponse подбирает статус по ErrorList; неизвестные ошибки отдаются как 500
// без текста, чтобы не светить внутренности.
func ErrorResponse(ctx echo.Context, err error) error {
	code, message := StatusFor(err)
	return ctx.JSON(code, &HttpResponse{
		Status:  false,
		Body:    struct{}{},
		Message: message,
	})
}

func StatusFor(err error) (int, string) {
	var invalid *apperrors.InvalidInputError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, invalid.Message
	}
	for target, statusCode := range ErrorList {
		if errors.Is(err, target) {
			return statusCode, target.Error()
		}
	}
	return http.StatusInternalServerError, "внутренняя ошибка сервера"
}
