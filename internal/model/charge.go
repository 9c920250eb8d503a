package model

import "time"

// ChargeStatus is the outcome of a single no-show charge attempt.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
)

// NoshowCharge is one row of the append-only charge ledger.  Exactly one
// succeeded row may exist per session; failed rows accumulate across
// retries.  The ledger is the audit trail the dashboard shows next to a
// session, including the decline reason for failed attempts.
type NoshowCharge struct {
	ID                 uint64       `json:"id"`
	GuaranteeSessionID uint64       `json:"guarantee_session_id"`
	AmountCents        int64        `json:"amount_cents"`
	Currency           string       `json:"currency"`
	Status             ChargeStatus `json:"status"`
	FailureReason      string       `json:"failure_reason,omitempty"`
	ProcessorChargeRef string       `json:"processor_charge_ref,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}
