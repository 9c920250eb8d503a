package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/model"
	"github.com/tablekeep/guarantee-service/internal/service"
)

// GuaranteeHandler exposes the guarantee lifecycle over HTTP.  The
// orchestration itself lives in service.GuaranteeService; handlers do
// input validation, auth-context extraction and error mapping.
type GuaranteeHandler struct {
	Svc *service.GuaranteeService
}

// NewGuaranteeHandler constructs a GuaranteeHandler.  Svc must be non-nil.
func NewGuaranteeHandler(svc *service.GuaranteeService) *GuaranteeHandler {
	if svc == nil {
		panic("nil service passed to NewGuaranteeHandler")
	}
	return &GuaranteeHandler{Svc: svc}
}

// createReq is the machine caller's create-session body.  reservation_date
// accepts canonical or free-text forms; automation fields are opaque
// passthrough for the downstream workflow.
type createReq struct {
	ExternalReservationID string `json:"external_reservation_id"`
	CustomerName          string `json:"customer_name"`
	CustomerEmail         string `json:"customer_email"`
	CustomerPhone         string `json:"customer_phone"`
	PartySize             int    `json:"party_size"`
	ReservationDate       string `json:"reservation_date"`
	CallbackURL           string `json:"callback_url"`
	CalendarID            string `json:"calendar_id"`
	BusinessType          string `json:"business_type"`
	DurationMin           int    `json:"duration_min"`
	Timezone              string `json:"timezone"`
}

// Create handles POST /v1/guarantees.  Configuration outcomes (guarantee
// disabled, processor not ready, applicability miss) come back as 200 with
// required=false so the unattended caller can branch without error
// handling; only malformed input and infrastructure failures are errors.
func (h *GuaranteeHandler) Create(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.ExternalReservationID = strings.TrimSpace(req.ExternalReservationID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.ExternalReservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_reservation_id is required"})
	}
	if req.CustomerName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	result, err := h.Svc.CreateSession(ctx, service.CreateSessionInput{
		MerchantID:            merchantID,
		ExternalReservationID: req.ExternalReservationID,
		CustomerName:          req.CustomerName,
		CustomerEmail:         strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:         strings.TrimSpace(req.CustomerPhone),
		PartySize:             req.PartySize,
		ReservationDate:       req.ReservationDate,
		Automation: model.AutomationContext{
			CallbackURL:  req.CallbackURL,
			CalendarID:   req.CalendarID,
			BusinessType: req.BusinessType,
			DurationMin:  req.DurationMin,
			Timezone:     req.Timezone,
		},
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	status := http.StatusOK
	if result.Required && result.Session != nil && result.Reason == service.ReasonAwaitingValidation {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

// Status handles GET /v1/guarantees/status: whether the guarantee is
// enabled for the calling merchant and on what terms.  Cached by
// middleware; callers hit it before every reservation conversation.
func (h *GuaranteeHandler) Status(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	status, err := h.Svc.Status(ctx, merchantID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

type attendanceReq struct {
	Outcome string `json:"outcome"` // attended | noshow
}

// Attendance handles POST /v1/guarantees/:id/attendance.  A charge decline
// is a 200 with charged=false and the decline reason; only a session in
// the wrong state or an unusable processor account is an HTTP error.
func (h *GuaranteeHandler) Attendance(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req attendanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	outcome := service.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
	if outcome != service.OutcomeAttended && outcome != service.OutcomeNoshow {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "outcome must be attended or noshow"})
	}

	// Generous timeout: the no-show path includes an off-session charge.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	result, err := h.Svc.MarkAttendance(ctx, merchantID, sessionID, outcome)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Resend handles POST /v1/guarantees/:id/resend: a fresh capture session
// for a pending guarantee whose payment link has gone stale.
func (h *GuaranteeHandler) Resend(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	session, err := h.Svc.Resend(ctx, merchantID, sessionID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":     session.ID,
		"payment_url":    session.CaptureURL,
		"reminder_count": session.ReminderCount,
	})
}

// Cancel handles POST /v1/guarantees/:id/cancel.
func (h *GuaranteeHandler) Cancel(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	if err := h.Svc.CancelSession(ctx, merchantID, sessionID); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusCancelled})
}

// Get handles GET /v1/guarantees/:id: the session, its charge ledger and
// whether the automation callback has been confirmed delivered.
func (h *GuaranteeHandler) Get(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	detail, err := h.Svc.GetSession(ctx, merchantID, sessionID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// List handles GET /v1/guarantees: all sessions for the merchant, newest
// first.
func (h *GuaranteeHandler) List(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	sessions, err := h.Svc.ListSessions(ctx, merchantID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}
