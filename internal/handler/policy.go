package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/model"
	"github.com/tablekeep/guarantee-service/internal/repository"
)

// PolicyHandler exposes the merchant's guarantee policy to the operator
// dashboard.  Edits never touch existing sessions: the penalty amount is
// snapshotted onto each session at creation.
type PolicyHandler struct {
	Policies *repository.PolicyRepo
}

func NewPolicyHandler(policies *repository.PolicyRepo) *PolicyHandler {
	return &PolicyHandler{Policies: policies}
}

// Get handles GET /v1/policy.
func (h *PolicyHandler) Get(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	policy, err := h.Policies.ByMerchant(ctx, merchantID)
	if err != nil {
		if err == repository.ErrPolicyNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no policy configured"})
		}
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, policy)
}

type policyReq struct {
	Enabled               bool   `json:"enabled"`
	PenaltyCentsPerPerson int64  `json:"penalty_cents_per_person"`
	Currency              string `json:"currency"`
	CancellationDelayHrs  int    `json:"cancellation_delay_hours"`
	Rule                  string `json:"applicability_rule"`
	MinPartySize          int    `json:"min_party_size"`
	MerchantSubAccountID  string `json:"merchant_sub_account_id"`
	BusinessName          string `json:"business_name"`
	LogoURL               string `json:"logo_url"`
	AutoEmailOnCreate     bool   `json:"auto_email_on_create"`
	AutoSmsOnCreate       bool   `json:"auto_sms_on_create"`
	AutoEmailOnValidation bool   `json:"auto_email_on_validation"`
	AutoSmsOnValidation   bool   `json:"auto_sms_on_validation"`
}

// Put handles PUT /v1/policy: full replace of the merchant's policy row.
func (h *PolicyHandler) Put(c echo.Context) error {
	merchantID, err := getMerchantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req policyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	rule := model.ApplicabilityRule(strings.ToLower(strings.TrimSpace(req.Rule)))
	switch rule {
	case "":
		rule = model.RuleAll
	case model.RuleAll, model.RuleWeekendOnly:
	case model.RuleMinPartySize:
		if req.MinPartySize < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "min_party_size must be at least 1"})
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown applicability_rule"})
	}
	if req.PenaltyCentsPerPerson < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "penalty_cents_per_person must not be negative"})
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}
	subAccount := strings.TrimSpace(req.MerchantSubAccountID)
	if req.Enabled && subAccount == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "enabling the guarantee requires a connected processor sub-account"})
	}

	policy := &model.GuaranteePolicy{
		MerchantID:            merchantID,
		Enabled:               req.Enabled,
		PenaltyCentsPerPerson: req.PenaltyCentsPerPerson,
		Currency:              currency,
		CancellationDelayHrs:  req.CancellationDelayHrs,
		Rule:                  rule,
		MinPartySize:          req.MinPartySize,
		MerchantSubAccountID:  subAccount,
		BusinessName:          strings.TrimSpace(req.BusinessName),
		LogoURL:               strings.TrimSpace(req.LogoURL),
		AutoEmailOnCreate:     req.AutoEmailOnCreate,
		AutoSmsOnCreate:       req.AutoSmsOnCreate,
		AutoEmailOnValidation: req.AutoEmailOnValidation,
		AutoSmsOnValidation:   req.AutoSmsOnValidation,
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Policies.Upsert(ctx, policy); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, policy)
}
