package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/utils"
)

// APIKeyAuth returns an Echo middleware authenticating machine callers
// (the automation workflow) by per-merchant API key.  Keys arrive in the
// X-Api-Key header or as a Bearer token; only the SHA-256 hash is compared
// against storage.  On success the owning merchant id is injected into the
// context under "merchant_id", the same key OperatorAuth uses, so handlers
// do not care which edge authenticated the request.
func APIKeyAuth(merchants *repository.MerchantRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-Api-Key")
			if raw == "" {
				auth := c.Request().Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					raw = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing api key"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
			defer cancel()
			merchantID, err := merchants.ByAPIKeyHash(ctx, utils.HashAPIKey(raw))
			if err != nil {
				if err == sql.ErrNoRows {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid api key"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "auth lookup failed"})
			}
			c.Set("merchant_id", merchantID)
			return next(c)
		}
	}
}
