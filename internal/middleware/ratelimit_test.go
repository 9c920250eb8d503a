package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/config"
)

func rateContext(t *testing.T) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/guarantees/status", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/guarantees/status")
	return c
}

// The limiter runs after the auth middleware on authenticated groups, so the
// key must bucket by the merchant the auth layer stored, whatever numeric or
// string form it arrived in.
func TestBuildRateKeyBucketsByMerchant(t *testing.T) {
	t.Parallel()
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_merchant_route"}

	apiKey := rateContext(t)
	apiKey.Set("merchant_id", uint64(42)) // API-key middleware stores uint64

	jwt := rateContext(t)
	jwt.Set("merchant_id", float64(42)) // JWT claims decode numbers as float64

	want := "rl:ip:192.0.2.1:merchant:42:route:GET /v1/guarantees/status"
	if got := buildRateKey(cfg, apiKey); got != want {
		t.Fatalf("api-key context key = %q, want %q", got, want)
	}
	if got := buildRateKey(cfg, jwt); got != want {
		t.Fatalf("jwt context key = %q, want %q", got, want)
	}
}

func TestBuildRateKeyUnauthenticated(t *testing.T) {
	t.Parallel()
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "merchant"}
	c := rateContext(t)
	if got, want := buildRateKey(cfg, c), "rl:merchant:anon"; got != want {
		t.Fatalf("unauthenticated key = %q, want %q", got, want)
	}
}
