package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablekeep/guarantee-service/internal/model"
	"github.com/tablekeep/guarantee-service/internal/processor"
	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/service"
)

// webhookSessions holds one pending session and records whether a callback
// validated it.  Only the methods the webhook path touches do real work.
type webhookSessions struct {
	session   model.GuaranteeSession
	validated bool
}

func (s *webhookSessions) Create(context.Context, *model.GuaranteeSession, []model.OutboxMessage) error {
	return errors.New("not implemented")
}
func (s *webhookSessions) ByID(context.Context, uint64) (*model.GuaranteeSession, error) {
	return nil, repository.ErrSessionNotFound
}
func (s *webhookSessions) ByExternalID(context.Context, uint64, string) (*model.GuaranteeSession, error) {
	return nil, repository.ErrSessionNotFound
}
func (s *webhookSessions) ByCaptureRef(_ context.Context, ref string) (*model.GuaranteeSession, error) {
	if ref != s.session.CaptureSessionRef {
		return nil, repository.ErrSessionNotFound
	}
	copied := s.session
	return &copied, nil
}
func (s *webhookSessions) ListByMerchant(context.Context, uint64) ([]model.GuaranteeSession, error) {
	return nil, nil
}
func (s *webhookSessions) Validate(_ context.Context, id uint64, authRef, _ string, _ time.Time, _ []model.OutboxMessage) error {
	if id != s.session.ID || s.session.Status != model.StatusPending {
		return repository.ErrConflict
	}
	s.session.Status = model.StatusValidated
	s.session.AuthorizationRef = &authRef
	s.validated = true
	return nil
}
func (s *webhookSessions) Transition(context.Context, uint64, []model.SessionStatus, model.SessionStatus) error {
	return repository.ErrConflict
}
func (s *webhookSessions) ClaimCharge(context.Context, uint64) error   { return repository.ErrConflict }
func (s *webhookSessions) ReleaseCharge(context.Context, uint64) error { return nil }
func (s *webhookSessions) FinishCharge(context.Context, uint64, model.SessionStatus, model.NoshowCharge, time.Time, []model.OutboxMessage) error {
	return repository.ErrConflict
}
func (s *webhookSessions) SetCaptureSession(context.Context, uint64, string, string, bool, []model.OutboxMessage) error {
	return nil
}
func (s *webhookSessions) Cancel(context.Context, uint64) error { return repository.ErrConflict }

type webhookPolicies struct{ policy model.GuaranteePolicy }

func (p *webhookPolicies) ByMerchant(context.Context, uint64) (*model.GuaranteePolicy, error) {
	copied := p.policy
	return &copied, nil
}

type webhookGateway struct{ authErr error }

func (g *webhookGateway) AccountStatus(_ context.Context, id string) (*processor.AccountStatus, error) {
	return &processor.AccountStatus{SubAccountID: id, ChargesEnabled: true}, nil
}
func (g *webhookGateway) CreateCaptureSession(context.Context, processor.CaptureSessionRequest) (*processor.CaptureSession, error) {
	return nil, errors.New("not implemented")
}
func (g *webhookGateway) GetAuthorization(context.Context, string, string) (*processor.Authorization, error) {
	if g.authErr != nil {
		return nil, g.authErr
	}
	return &processor.Authorization{PaymentMethodRef: "pm_test", CustomerRef: "cus_test"}, nil
}
func (g *webhookGateway) CreateOffSessionCharge(context.Context, processor.ChargeRequest) (*processor.Charge, error) {
	return nil, errors.New("not implemented")
}

const webhookSecret = "whsec_test"

func newWebhookFixture(gw *webhookGateway) (*WebhookHandler, *webhookSessions) {
	sessions := &webhookSessions{session: model.GuaranteeSession{
		ID:                7,
		MerchantID:        1,
		Status:            model.StatusPending,
		CaptureSessionRef: "cs_known",
	}}
	policies := &webhookPolicies{policy: model.GuaranteePolicy{
		MerchantID:           1,
		Enabled:              true,
		MerchantSubAccountID: "acct_test",
	}}
	svc := service.NewGuaranteeService(sessions, policies, nil, nil, gw, "https://book.example.com", nil)
	return NewWebhookHandler(svc, webhookSecret), sessions
}

func signedRequest(body string) *http.Request {
	ts := time.Now().Unix()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/processor", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(SignatureHeader,
		fmt.Sprintf("t=%d,v1=%s", ts, processor.ComputeSignature(webhookSecret, ts, []byte(body))))
	return req
}

func deliver(h *WebhookHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if err := h.HandleCallback(c); err != nil {
		panic(err)
	}
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	h, sessions := newWebhookFixture(&webhookGateway{})
	body := `{"type":"capture_session.completed","data":{"capture_session_ref":"cs_known"}}`

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/processor", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "t=0,v1=deadbeef")
	if rec := deliver(h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad signature status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/processor", strings.NewReader(body))
	if rec := deliver(h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing signature status = %d, want 400", rec.Code)
	}

	if sessions.validated {
		t.Fatal("unverified callback mutated session state")
	}
}

func TestWebhookValidatesPendingSession(t *testing.T) {
	t.Parallel()
	h, sessions := newWebhookFixture(&webhookGateway{})
	body := `{"type":"capture_session.completed","data":{"capture_session_ref":"cs_known"}}`

	rec := deliver(h, signedRequest(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !sessions.validated {
		t.Fatal("session not validated")
	}

	// Redelivery is acknowledged without reprocessing.
	rec = deliver(h, signedRequest(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", rec.Code)
	}
}

func TestWebhookAcknowledgesUnknownRef(t *testing.T) {
	t.Parallel()
	h, sessions := newWebhookFixture(&webhookGateway{})
	body := `{"type":"capture_session.completed","data":{"capture_session_ref":"cs_other"}}`

	if rec := deliver(h, signedRequest(body)); rec.Code != http.StatusOK {
		t.Fatalf("unknown ref status = %d, want 200", rec.Code)
	}
	if sessions.validated {
		t.Fatal("unknown ref validated the session")
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()
	h, sessions := newWebhookFixture(&webhookGateway{})
	body := `{"type":"account.updated","data":{}}`

	if rec := deliver(h, signedRequest(body)); rec.Code != http.StatusOK {
		t.Fatalf("irrelevant event status = %d, want 200", rec.Code)
	}
	if sessions.validated {
		t.Fatal("irrelevant event validated the session")
	}
}

func TestWebhookRejectsMissingRef(t *testing.T) {
	t.Parallel()
	h, _ := newWebhookFixture(&webhookGateway{})
	body := `{"type":"capture_session.completed","data":{}}`

	if rec := deliver(h, signedRequest(body)); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ref status = %d, want 400", rec.Code)
	}
}

func TestWebhookTransientFailureAnswers500(t *testing.T) {
	t.Parallel()
	h, sessions := newWebhookFixture(&webhookGateway{authErr: errors.New("processor 502")})
	body := `{"type":"capture_session.completed","data":{"capture_session_ref":"cs_known"}}`

	if rec := deliver(h, signedRequest(body)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("transient failure status = %d, want 500 so the processor retries", rec.Code)
	}
	if sessions.validated {
		t.Fatal("failed callback validated the session")
	}
}
