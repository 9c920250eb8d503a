package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/repository"
)

// OutboxHandler exposes the manual-retry action for outbox messages whose
// delivery attempts were exhausted.
type OutboxHandler struct {
	Outbox *repository.OutboxRepo
}

func NewOutboxHandler(outbox *repository.OutboxRepo) *OutboxHandler {
	return &OutboxHandler{Outbox: outbox}
}

// Retry handles POST /v1/outbox/:id/retry.  Only failed messages can be
// retried; anything else answers 409.
func (h *OutboxHandler) Retry(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid message id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Outbox.Retry(ctx, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"retried": true})
}
