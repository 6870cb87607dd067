// Package apperr defines the error taxonomy shared by the domain services and
// its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrNotFound is returned when a patient, session, measurement or catalog
	// entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidMeasurement covers out-of-range ages and malformed
	// anthropometric fields.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrComputation is returned when a reference curve yields a degenerate
	// standard deviation.
	ErrComputation = errors.New("computation error")
	// ErrValidation is returned for malformed request input.
	ErrValidation = errors.New("validation error")
	// ErrConflict is returned when a write-once field is written twice.
	ErrConflict = errors.New("conflict")
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidMeasurement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError converts a service error into an echo.HTTPError carrying the
// mapped status. Internal errors are not echoed back to the client.
func HTTPError(err error) *echo.HTTPError {
	status := Status(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
