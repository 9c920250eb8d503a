// Package handler implements the HTTP surface of the guarantee service.
// All methods assume authentication middleware already ran: machine
// endpoints read the merchant id injected by the API-key middleware,
// operator endpoints the one from the JWT middleware.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/service"
)

// getMerchantID extracts the merchant id stored in the request context by
// the auth middleware and converts it to uint64.
func getMerchantID(c echo.Context) (uint64, error) {
	v := c.Get("merchant_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid merchant_id in context")
}

// sessionIDParam parses the :id path parameter.
func sessionIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid session id")
	}
	return id, nil
}

// writeServiceError translates sentinel errors from the service and
// repository layers into HTTP responses with actionable messages.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "session belongs to another merchant"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is not in a state that allows this transition"})
	case errors.Is(err, repository.ErrChargeAlreadySucceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a successful charge is already recorded for this session"})
	case errors.Is(err, service.ErrProcessorNotReady):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment processor account is not connected or cannot charge"})
	case errors.Is(err, service.ErrMissingAuthorization):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has no authorized payment method"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
