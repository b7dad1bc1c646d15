package utils

import (
	"net/http"

	apperrors "roster-sync/pkg/errors"
)

// ErrorList - соответствие доменных ошибок HTTP-статусам.
var ErrorList = map[error]int{
	apperrors.ErrNotFound:             http.StatusNotFound,
	apperrors.ErrStatusNotRecorded:    http.StatusNotFound,
	apperrors.ErrBadRequest:           http.StatusBadRequest,
	apperrors.ErrSyncInProgress:       http.StatusConflict,
	apperrors.ErrEmptyAuthHeader:      http.StatusUnauthorized,
	apperrors.ErrInvalidAuthHeader:    http.StatusUnauthorized,
	apperrors.ErrInvalidToken:         http.StatusUnauthorized,
	apperrors.ErrInvalidSigningMethod: http.StatusUnauthorized,
	apperrors.ErrTokenExpired:         http.StatusUnauthorized,
	apperrors.ErrUnauthorized:         http.StatusUnauthorized,
	apperrors.ErrForbidden:            http.StatusForbidden,
}
