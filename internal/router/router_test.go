package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinebook-inventory/internal/clock"
	"github.com/iliyamo/cinebook-inventory/internal/handler"
	"github.com/iliyamo/cinebook-inventory/internal/model"
	"github.com/iliyamo/cinebook-inventory/internal/repository"
	"github.com/iliyamo/cinebook-inventory/internal/service"
)

type testServer struct {
	e     *echo.Echo
	clk   *clock.Manual
	store *repository.MemoryStore
	show  *model.Show
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewManual(time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC))
	show := &model.Show{Title: "Arrival", StartsAt: clk.Now().Add(time.Hour), TotalSeats: 10, AvailableSeats: 10, PriceCents: 1200}
	if err := store.CreateShow(context.Background(), show); err != nil {
		t.Fatalf("create show: %v", err)
	}
	engine := service.NewReservationEngine(store, clk, nil, service.WithRetry(1, 0))
	projector := service.NewSeatMapProjector(store, clk, engine.Layout())
	sweeper := service.NewSweeper(engine, time.Minute, 100)

	e := echo.New()
	RegisterRoutes(e, handler.NewReservationHandler(engine, projector, sweeper), handler.Health(nil), nil, nil)
	return &testServer{e: e, clk: clk, store: store, show: show}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHoldLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["a1","A2"],"name":"Ada","email":"ada@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var hold model.Hold
	decode(t, rec, &hold)
	if hold.Status != model.HoldStatusPending || len(hold.Seats) != 2 || hold.Contact.Name != "Ada" {
		t.Fatalf("unexpected hold %+v", hold)
	}

	rec = s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["A2","A3"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var conflict struct {
		Error string   `json:"error"`
		Seats []string `json:"seats"`
	}
	decode(t, rec, &conflict)
	if conflict.Error != "seat_conflict" || len(conflict.Seats) != 1 || conflict.Seats[0] != "A2" {
		t.Fatalf("unexpected conflict body %+v", conflict)
	}

	rec = s.do(t, http.MethodGet, "/v1/shows/1/seats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var seatMap model.SeatMap
	decode(t, rec, &seatMap)
	if seatMap.Available != 8 || seatMap.Rows["A"][0].Status != model.SeatBooked {
		t.Fatalf("unexpected seat map %+v", seatMap)
	}

	rec = s.do(t, http.MethodPost, "/v1/holds/"+hold.ID+"/confirm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/v1/holds/"+hold.ID+"/confirm", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second confirm, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/v1/holds/"+hold.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decode(t, rec, &hold)
	if hold.Status != model.HoldStatusConfirmed {
		t.Fatalf("expected cancel to leave CONFIRMED, got %s", hold.Status)
	}

	rec = s.do(t, http.MethodGet, "/v1/stats", "")
	var st model.HoldStats
	decode(t, rec, &st)
	if st.Confirmed != 1 || st.ConfirmedRevenueCents != 2400 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestExpiryAndSweepOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["A5"]}`)
	var hold model.Hold
	decode(t, rec, &hold)
	rec = s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["A6"]}`)
	var idle model.Hold
	decode(t, rec, &idle)
	s.clk.Advance(121 * time.Second)

	// the late confirm fails the hold itself; the idle one waits for the sweep
	if rec := s.do(t, http.MethodPost, "/v1/holds/"+hold.ID+"/confirm", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for expired hold, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/v1/admin/sweep", "")
	var swept struct {
		Swept int `json:"swept"`
	}
	decode(t, rec, &swept)
	if rec.Code != http.StatusOK || swept.Swept != 1 {
		t.Fatalf("expected one swept hold, got %d %+v", rec.Code, swept)
	}

	rec = s.do(t, http.MethodGet, "/v1/shows/1", "")
	var summary struct {
		Show    model.Show    `json:"show"`
		SeatMap model.SeatMap `json:"seat_map"`
	}
	decode(t, rec, &summary)
	if summary.Show.AvailableSeats != 10 || summary.SeatMap.Available != 10 {
		t.Fatalf("expected full availability after sweep, got %+v", summary.Show)
	}
	for _, id := range []string{hold.ID, idle.ID} {
		rec = s.do(t, http.MethodGet, "/v1/holds/"+id, "")
		var got model.Hold
		decode(t, rec, &got)
		if got.Status != model.HoldStatusFailed {
			t.Fatalf("expected hold %s FAILED, got %s", id, got.Status)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"bad show id", http.MethodGet, "/v1/shows/abc/seats", "", http.StatusBadRequest},
		{"unknown show", http.MethodGet, "/v1/shows/99", "", http.StatusNotFound},
		{"unknown hold", http.MethodGet, "/v1/holds/nope", "", http.StatusNotFound},
		{"cancel unknown hold", http.MethodDelete, "/v1/holds/nope", "", http.StatusNotFound},
		{"confirm unknown hold", http.MethodPost, "/v1/holds/nope/confirm", "", http.StatusConflict},
		{"empty seats", http.MethodPost, "/v1/shows/1/holds", `{"seats":[]}`, http.StatusBadRequest},
		{"seat outside layout", http.MethodPost, "/v1/shows/1/holds", `{"seats":["C1"]}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/v1/shows/1/holds", `{"seats":`, http.StatusBadRequest},
		{"too many seats", http.MethodPost, "/v1/shows/1/holds", `{"seats":["A1","A2","A3","A4","A5","A6","A7"]}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		rec := s.do(t, tc.method, tc.path, tc.body)
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.code, rec.Code, rec.Body.String())
		}
	}

	// 3 seats requested with 2 left
	for _, seats := range []string{`["A1","A2","A3","A4"]`, `["A5","A6","A7","A8"]`} {
		if rec := s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":`+seats+`}`); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	}
	rec := s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["A9","A10","A1"]}`)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "insufficient_inventory") {
		t.Fatalf("expected 409 insufficient_inventory, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStorageFailureIs503(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.store.BeforeCommit = func() error { return context.DeadlineExceeded }

	rec := s.do(t, http.MethodPost, "/v1/shows/1/holds", `{"seats":["A1"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}
