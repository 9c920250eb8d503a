package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func policyPut(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/policy", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("merchant_id", uint64(1))
	// Validation failures reject before any storage access.
	h := &PolicyHandler{}
	if err := h.Put(c); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return rec
}

// A policy cannot be switched on without a processor sub-account: sessions
// created under it would dead-end at charge time.
func TestPolicyPutEnableRequiresSubAccount(t *testing.T) {
	t.Parallel()
	rec := policyPut(t, `{"enabled":true,"penalty_cents_per_person":2500}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("enabled without sub-account = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sub-account") {
		t.Fatalf("error body %q does not name the sub-account", rec.Body.String())
	}
}

func TestPolicyPutRejectsUnknownRule(t *testing.T) {
	t.Parallel()
	rec := policyPut(t, `{"applicability_rule":"full_moon_only"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown rule = %d, want 400", rec.Code)
	}
}

func TestPolicyPutRejectsNegativePenalty(t *testing.T) {
	t.Parallel()
	rec := policyPut(t, `{"penalty_cents_per_person":-100}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative penalty = %d, want 400", rec.Code)
	}
}

func TestPolicyPutMinPartySizeRuleNeedsThreshold(t *testing.T) {
	t.Parallel()
	rec := policyPut(t, `{"applicability_rule":"min_party_size"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("min_party_size without threshold = %d, want 400", rec.Code)
	}
}
