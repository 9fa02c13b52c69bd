package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mvolkov/storecore/internal/service"
)

// httpError maps the service error taxonomy to stable HTTP responses. The
// wrapped message is surfaced; raw persistence errors never are.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrPriceChanged),
		errors.Is(err, service.ErrAlreadyCaptured),
		errors.Is(err, service.ErrAlreadyInFlight),
		errors.Is(err, service.ErrExceedsRefundable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrProvider):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func statusOf(err error) int {
	return httpError(err).Code
}
