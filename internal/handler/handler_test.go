package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinebook-inventory/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthReportsDatabase(t *testing.T) {
	t.Parallel()
	e := echo.New()
	tests := []struct {
		name string
		db   Pinger
		code int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", pingerFunc(func(context.Context) error { return nil }), http.StatusOK},
		{"database down", pingerFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
		if err := Health(tc.db)(c); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, rec.Code)
		}
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()
	e := echo.New()
	tests := []struct {
		err  error
		code int
	}{
		{&service.SeatConflictError{Seats: []string{"A1"}}, http.StatusConflict},
		{fmt.Errorf("%w: bad seat", service.ErrInvalidRequest), http.StatusBadRequest},
		{service.ErrShowNotFound, http.StatusNotFound},
		{service.ErrHoldNotFound, http.StatusNotFound},
		{service.ErrInsufficientInventory, http.StatusConflict},
		{service.ErrHoldNotConfirmable, http.StatusConflict},
		{fmt.Errorf("%w: %w", service.ErrStorageFailure, errors.New("deadlock")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := writeError(c, tc.err); err != nil {
			t.Fatalf("writeError(%v): %v", tc.err, err)
		}
		if rec.Code != tc.code {
			t.Fatalf("writeError(%v): expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}
