package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinebook-inventory/internal/config"
)

func TestTokenBucketPassThroughWithoutRedis(t *testing.T) {
	t.Parallel()
	e := echo.New()
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil)

	calls := 0
	h := mw(func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusNoContent)
	})
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		if err := h(c); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestBuildRateKey(t *testing.T) {
	t.Parallel()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/shows/7/holds", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/shows/:id/holds")
	c.SetParamNames("id")
	c.SetParamValues("7")

	tests := map[string]string{
		"ip":       "rl:ip:10.0.0.1",
		"route":    "rl:route:POST /v1/shows/:id/holds",
		"show":     "rl:show:7",
		"ip_show":  "rl:ip:10.0.0.1:show:7",
		"ip_route": "rl:ip:10.0.0.1:route:POST /v1/shows/:id/holds",
		"":         "rl:ip:10.0.0.1:route:POST /v1/shows/:id/holds",
	}
	for strategy, want := range tests {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Fatalf("strategy %q: expected %q, got %q", strategy, want, got)
		}
	}
}
