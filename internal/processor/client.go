package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client is the live Gateway implementation over the processor's REST API.
// Every request carries the platform secret key and, when acting for a
// merchant, the sub-account id header the processor uses to scope the call.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient builds a Client for the given API base URL and platform secret.
// timeout bounds every individual call; the processor's own retry guidance
// assumes short client timeouts.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError mirrors the processor's error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes one signed JSON request and decodes the response into out.
// Timeouts are normalized to ErrTimeout so callers can record them
// distinctly; charge declines are surfaced as *DeclineError.
func (c *Client) do(ctx context.Context, method, path, subAccountID string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("processor: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("processor: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if subAccountID != "" {
		req.Header.Set("X-Sub-Account", subAccountID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("processor: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("processor: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var envelope apiError
		_ = json.Unmarshal(data, &envelope)
		if envelope.Error.Type == "card_error" {
			return &DeclineError{Code: envelope.Error.Code, Message: envelope.Error.Message}
		}
		return fmt.Errorf("processor: %s %s: status %d: %s", method, path, resp.StatusCode, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("processor: decode response: %w", err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// AccountStatus fetches the charge capability of a merchant sub-account.
func (c *Client) AccountStatus(ctx context.Context, subAccountID string) (*AccountStatus, error) {
	var status AccountStatus
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+subAccountID, "", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateCaptureSession starts a hosted capture flow scoped to the merchant
// sub-account.
func (c *Client) CreateCaptureSession(ctx context.Context, req CaptureSessionRequest) (*CaptureSession, error) {
	body := map[string]interface{}{
		"mode":           "setup",
		"customer_email": req.CustomerEmail,
		"customer_name":  req.CustomerName,
		"success_url":    req.SuccessURL,
		"cancel_url":     req.CancelURL,
		"metadata":       req.Metadata,
	}
	var session CaptureSession
	if err := c.do(ctx, http.MethodPost, "/v1/capture_sessions", req.SubAccountID, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetAuthorization resolves the payment-method and customer handles behind
// a completed capture session.
func (c *Client) GetAuthorization(ctx context.Context, subAccountID, captureRef string) (*Authorization, error) {
	var auth Authorization
	if err := c.do(ctx, http.MethodGet, "/v1/capture_sessions/"+captureRef+"/authorization", subAccountID, nil, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// CreateOffSessionCharge executes the penalty charge.  The description tag
// lets the merchant reconcile the charge against the reservation in the
// processor dashboard.
func (c *Client) CreateOffSessionCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := map[string]interface{}{
		"amount":         req.AmountCents,
		"currency":       req.Currency,
		"customer":       req.CustomerRef,
		"payment_method": req.PaymentMethodRef,
		"off_session":    true,
		"confirm":        true,
		"description":    req.Description,
	}
	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", req.SubAccountID, body, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}
