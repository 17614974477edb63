// Package router registers the HTTP routes of the inventory service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinebook-inventory/internal/handler"
)

// RegisterRoutes maps every endpoint onto e.  limiter wraps the routes
// that create or settle holds and statsCache wraps GET /v1/stats.
// Either may be nil.
func RegisterRoutes(e *echo.Echo, h *handler.ReservationHandler, health echo.HandlerFunc, limiter, statsCache echo.MiddlewareFunc) {
	e.GET("/healthz", health)

	v1 := e.Group("/v1")
	v1.GET("/shows/:id", h.GetShow)
	v1.GET("/shows/:id/seats", h.GetSeatMap)
	v1.GET("/holds/:id", h.GetHold)
	if statsCache != nil {
		v1.GET("/stats", h.Stats, statsCache)
	} else {
		v1.GET("/stats", h.Stats)
	}

	var mw []echo.MiddlewareFunc
	if limiter != nil {
		mw = append(mw, limiter)
	}
	v1.POST("/shows/:id/holds", h.CreateHold, mw...)
	v1.POST("/holds/:id/confirm", h.ConfirmHold, mw...)
	v1.DELETE("/holds/:id", h.CancelHold, mw...)

	v1.POST("/admin/sweep", h.Sweep)
}
