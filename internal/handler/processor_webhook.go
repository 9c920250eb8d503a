package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/processor"
	"github.com/tablekeep/guarantee-service/internal/service"
)

// WebhookHandler receives the processor's signed callbacks.  Signature
// verification is a hard authentication boundary: it runs against the raw
// body before anything is parsed, and an unverifiable callback is rejected
// with 400 regardless of payload content.
type WebhookHandler struct {
	Svc            *service.GuaranteeService
	EndpointSecret string
	Tolerance      time.Duration
	now            func() time.Time
}

// NewWebhookHandler constructs a WebhookHandler with the shared endpoint
// secret the processor signs callbacks with.
func NewWebhookHandler(svc *service.GuaranteeService, endpointSecret string) *WebhookHandler {
	if svc == nil {
		panic("nil service passed to NewWebhookHandler")
	}
	return &WebhookHandler{
		Svc:            svc,
		EndpointSecret: endpointSecret,
		Tolerance:      processor.DefaultSignatureTolerance,
		now:            time.Now,
	}
}

// SignatureHeader is the header the processor signs callbacks under.
const SignatureHeader = "X-Processor-Signature"

// callbackEvent is the subset of the processor's event envelope this
// service consumes.
type callbackEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		CaptureSessionRef string `json:"capture_session_ref"`
	} `json:"data"`
}

// HandleCallback handles POST /v1/webhooks/processor.
//
// Response codes drive the processor's redelivery: 400 for a bad
// signature (redelivery would fail identically), 200 for anything handled
// or deliberately ignored, 500 for transient failures the processor should
// retry.
func (h *WebhookHandler) HandleCallback(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	header := c.Request().Header.Get(SignatureHeader)
	if err := processor.VerifySignature(h.EndpointSecret, header, body, h.Tolerance, h.now()); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	var event callbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
	}
	if event.Type != "capture_session.completed" {
		// Other event types on the account are none of our business;
		// acknowledge so the processor stops redelivering them.
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}
	if event.Data.CaptureSessionRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing capture_session_ref"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	if err := h.Svc.HandleCaptureCompleted(ctx, event.Data.CaptureSessionRef); err != nil {
		// Transient: answer non-2xx so the processor redelivers.
		c.Logger().Errorf("webhook: capture completed for %s: %v", event.Data.CaptureSessionRef, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
