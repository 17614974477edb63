package handler

import (
	"errors"   // for errors.Is / errors.As comparisons
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinebook-inventory/internal/service" // error taxonomy
)

// writeError maps the engine's error taxonomy onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var conflict *service.SeatConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "seat_conflict",
			"seats": conflict.Seats, // offending seats in request order
		})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, service.ErrShowNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show_not_found"})
	case errors.Is(err, service.ErrHoldNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "hold_not_found"})
	case errors.Is(err, service.ErrInsufficientInventory):
		return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient_inventory"})
	case errors.Is(err, service.ErrHoldNotConfirmable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "hold_not_confirmable",
			"message": "hold expired or already settled",
		})
	case errors.Is(err, service.ErrStorageFailure):
		// retries are exhausted and nothing was written
		c.Logger().Errorf("storage failure: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage_unavailable"})
	}
	c.Logger().Errorf("unexpected error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
