// Package handler exposes the reservation engine over HTTP with echo.
package handler

import (
	"context"  // request-scoped cancellation for the sweeper
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters
	"strings"  // trimming contact fields

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinebook-inventory/internal/model"   // hold and contact types
	"github.com/iliyamo/cinebook-inventory/internal/service" // reservation engine
)

// Sweeper runs one expiry sweep on demand.
type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// ReservationHandler groups the seat map, hold and stats endpoints.
type ReservationHandler struct {
	Engine    *service.ReservationEngine // creates, confirms and cancels holds
	Projector *service.SeatMapProjector  // read-only seat map and show summary
	Sweeper   Sweeper                    // on-demand expiry sweep
}

// NewReservationHandler wires the handler.  All dependencies must be
// non-nil.
func NewReservationHandler(engine *service.ReservationEngine, projector *service.SeatMapProjector, sweeper Sweeper) *ReservationHandler {
	if engine == nil || projector == nil || sweeper == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: engine, Projector: projector, Sweeper: sweeper}
}

// holdRequest is the body of POST /v1/shows/:id/holds.
type holdRequest struct {
	Seats []string `json:"seats"` // seat identifiers, e.g. ["A1","A2"]
	Name  string   `json:"name"`  // optional; defaults to Guest
	Email string   `json:"email"` // optional; defaults to guest@example.com
}

// parseShowID reads the :id path parameter as a positive show ID.
func parseShowID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0 // zero is never a valid primary key
}

// GetShow handles GET /v1/shows/:id: the show with its counter and
// projected seat map.
func (h *ReservationHandler) GetShow(c echo.Context) error {
	id, ok := parseShowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	summary, err := h.Projector.Summary(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// GetSeatMap handles GET /v1/shows/:id/seats.
func (h *ReservationHandler) GetSeatMap(c echo.Context) error {
	id, ok := parseShowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	m, err := h.Projector.Project(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// CreateHold handles POST /v1/shows/:id/holds.  On success it returns 201
// with the PENDING hold; conflicts return 409 with the offending seats.
func (h *ReservationHandler) CreateHold(c echo.Context) error {
	id, ok := parseShowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	// bind request body
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	// seat validation, conflict detection and the counter update all
	// happen inside the engine's transaction
	hold, err := h.Engine.CreateHold(c.Request().Context(), service.CreateHoldInput{
		ShowID: id,
		Seats:  req.Seats,
		Contact: model.Contact{
			Name:  strings.TrimSpace(req.Name),
			Email: strings.TrimSpace(req.Email),
		},
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, hold) // PENDING until confirmed or expired
}

// GetHold handles GET /v1/holds/:id.
func (h *ReservationHandler) GetHold(c echo.Context) error {
	hold, err := h.Engine.GetHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// ConfirmHold handles POST /v1/holds/:id/confirm.  An expired hold
// answers 409 and is failed on the spot.
func (h *ReservationHandler) ConfirmHold(c echo.Context) error {
	hold, err := h.Engine.ConfirmHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err) // unknown, expired and settled holds all map to 409
	}
	return c.JSON(http.StatusOK, hold)
}

// CancelHold handles DELETE /v1/holds/:id.  Cancelling a settled hold is
// a no-op and still answers 200 with the hold's current state.
func (h *ReservationHandler) CancelHold(c echo.Context) error {
	hold, err := h.Engine.CancelHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// Sweep handles POST /v1/admin/sweep and runs one expiry cycle now.
func (h *ReservationHandler) Sweep(c echo.Context) error {
	n, err := h.Sweeper.SweepOnce(c.Request().Context())
	if err != nil {
		// holds swept before the failure stay swept; the rest wait for the next cycle
		c.Logger().Warnf("sweep: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "sweep_incomplete", "swept": n})
	}
	return c.JSON(http.StatusOK, echo.Map{"swept": n})
}

// Stats handles GET /v1/stats.
func (h *ReservationHandler) Stats(c echo.Context) error {
	st, err := h.Engine.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
