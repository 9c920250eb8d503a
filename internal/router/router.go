package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/tablekeep/guarantee-service/internal/config"
	"github.com/tablekeep/guarantee-service/internal/handler"    // import the handlers that implement business logic
	"github.com/tablekeep/guarantee-service/internal/middleware" // import middleware for authentication and rate limiting
	"github.com/tablekeep/guarantee-service/internal/repository"
)

// Deps bundles everything route registration needs: handlers plus the
// shared infrastructure (Redis, merchant lookup) that middleware is built
// from.  Keeping it in one struct makes main.go wiring short.
type Deps struct {
	Auth      *handler.AuthHandler
	Guarantee *handler.GuaranteeHandler
	Webhook   *handler.WebhookHandler
	Outbox    *handler.OutboxHandler
	Policy    *handler.PolicyHandler
	Merchants *repository.MerchantRepo
	JWTSecret string
	Redis     *redis.Client
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI wires the full v1 surface.  Three trust boundaries exist:
//
//   - booking-channel endpoints authenticated by merchant API key
//   - the processor webhook, authenticated by its HMAC signature alone
//   - operator endpoints authenticated by a short-lived JWT
//
// Rate limiting applies across all of them and runs after authentication on
// the authenticated groups so the limiter buckets by merchant identity, not
// by source address alone.  The response cache only fronts the read-only
// status endpoint, which is the hot path for booking widgets.
func RegisterAPI(e *echo.Echo, d Deps) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis)

	// Operator credential exchange.  No auth required to obtain a token,
	// but the endpoint is still rate limited to slow down guessing.
	auth := e.Group("/v1/auth")
	auth.Use(rl)
	auth.POST("/operator", d.Auth.OperatorLogin)

	// Booking-channel endpoints.  These are called by reservation widgets
	// and partner integrations holding a merchant API key.
	api := e.Group("/v1/guarantees")
	api.Use(middleware.APIKeyAuth(d.Merchants))
	api.Use(rl)
	api.GET("/status", d.Guarantee.Status, cache)
	api.POST("", d.Guarantee.Create)

	// Processor callbacks carry no API key; the signature check inside the
	// handler is the authentication boundary.
	e.POST("/v1/webhooks/processor", d.Webhook.HandleCallback, rl)

	// Operator console endpoints: attendance marking, lifecycle management
	// and inspection.  All require a valid operator JWT scoped to one
	// merchant; handlers enforce per-session ownership on top.
	ops := e.Group("/v1/guarantees")
	ops.Use(middleware.OperatorAuth(d.JWTSecret))
	ops.Use(rl)
	ops.GET("", d.Guarantee.List)
	ops.GET("/:id", d.Guarantee.Get)
	ops.POST("/:id/attendance", d.Guarantee.Attendance)
	ops.POST("/:id/resend", d.Guarantee.Resend)
	ops.POST("/:id/cancel", d.Guarantee.Cancel)

	// Policy settings, also operator-scoped.
	policy := e.Group("/v1/policy")
	policy.Use(middleware.OperatorAuth(d.JWTSecret))
	policy.Use(rl)
	policy.GET("", d.Policy.Get)
	policy.PUT("", d.Policy.Put)

	// Manual retry for outbox messages whose delivery attempts ran out.
	box := e.Group("/v1/outbox")
	box.Use(middleware.OperatorAuth(d.JWTSecret))
	box.Use(rl)
	box.POST("/:id/retry", d.Outbox.Retry)
}
