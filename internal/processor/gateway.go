// Package processor is the client side of the hosted payment processor.  It
// creates payment-method capture sessions, resolves authorizations and
// executes off-session charges under a merchant's connected sub-account, and
// verifies the signature the processor attaches to its callbacks.
package processor

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned when a processor call exceeds its deadline.  The
// charge executor turns it into a failed ledger row with reason
// "processor_timeout" rather than leaving the attempt unrecorded.
var ErrTimeout = errors.New("processor: request timed out")

// AccountStatus describes a merchant sub-account as the processor sees it.
type AccountStatus struct {
	SubAccountID   string `json:"sub_account_id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	DetailsNeeded  bool   `json:"details_needed"`
}

// CaptureSessionRequest asks the processor to host a card-capture flow.
// Metadata carries the internal guarantee session id so the completed
// capture can be correlated back from the callback.
type CaptureSessionRequest struct {
	SubAccountID  string
	CustomerEmail string
	CustomerName  string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CaptureSession is the processor's handle to a hosted capture flow.  URL is
// where the customer completes card entry.
type CaptureSession struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// Authorization is the processor-side handle to a validated, chargeable
// payment method together with the customer object it is vaulted under.
type Authorization struct {
	PaymentMethodRef string `json:"payment_method_ref"`
	CustomerRef      string `json:"customer_ref"`
}

// ChargeRequest executes an off-session charge against a previously
// authorized payment method.  Description is the merchant-visible tag used
// for reconciliation; it carries the external reservation id.
type ChargeRequest struct {
	SubAccountID     string
	CustomerRef      string
	PaymentMethodRef string
	AmountCents      int64
	Currency         string
	Description      string
}

// Charge is the processor's record of a charge attempt.
type Charge struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

// DeclineError reports that the processor refused a charge.  Declines are
// business outcomes, not transport failures; callers record them in the
// ledger and surface the reason to the operator.
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("processor: charge declined (%s): %s", e.Code, e.Message)
}

// Reason returns the decline reason suitable for the ledger and the
// operator UI.
func (e *DeclineError) Reason() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Message
}

// Gateway is the surface of the payment processor this service depends on.
// The live implementation talks to the processor's REST API; tests use a
// stub.
type Gateway interface {
	// AccountStatus reports whether the sub-account exists and can charge.
	AccountStatus(ctx context.Context, subAccountID string) (*AccountStatus, error)
	// CreateCaptureSession starts a hosted payment-method capture flow.
	CreateCaptureSession(ctx context.Context, req CaptureSessionRequest) (*CaptureSession, error)
	// GetAuthorization resolves the payment-method handle captured by a
	// completed capture session.
	GetAuthorization(ctx context.Context, subAccountID, captureRef string) (*Authorization, error)
	// CreateOffSessionCharge charges an authorized payment method without
	// the customer present.  Declines are returned as *DeclineError.
	CreateOffSessionCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
