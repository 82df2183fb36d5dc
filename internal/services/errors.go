package services

import (
	"errors"
	"net/http"

	civic_errors "civic-polls/pkg/errors"
)

// HTTPStatus maps service errors onto response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, civic_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, civic_errors.ErrUnauthorized), errors.Is(err, civic_errors.ErrCodeExpired):
		return http.StatusUnauthorized
	case errors.Is(err, civic_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, civic_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, civic_errors.ErrAlreadyExists),
		errors.Is(err, civic_errors.ErrConflict),
		errors.Is(err, civic_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, civic_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, civic_errors.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, civic_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, civic_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
