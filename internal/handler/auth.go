package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/config"
	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/utils"
)

// AuthHandler exchanges an operator credential for a merchant-scoped JWT.
// This is the whole auth surface of this service; user management itself
// lives in the main platform.
type AuthHandler struct {
	Cfg       config.Config
	Merchants *repository.MerchantRepo
}

func NewAuthHandler(cfg config.Config, m *repository.MerchantRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Merchants: m}
}

type operatorLoginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type operatorLoginResp struct {
	Token      string    `json:"token"`
	Expires    time.Time `json:"expires"`
	MerchantID uint64    `json:"merchant_id"`
}

// OperatorLogin verifies the operator credential and returns a JWT carrying
// the merchant id as its subject.
func (h *AuthHandler) OperatorLogin(c echo.Context) error {
	var req operatorLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Login = strings.ToLower(strings.TrimSpace(req.Login))
	if req.Login == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "login/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	merchantID, passwordHash, err := h.Merchants.OperatorCredential(ctx, req.Login)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !utils.VerifyPassword(passwordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := utils.NewOperatorToken(h.Cfg.JWTSecret, merchantID, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, operatorLoginResp{
		Token:      token.Token,
		Expires:    token.Exp,
		MerchantID: merchantID,
	})
}
