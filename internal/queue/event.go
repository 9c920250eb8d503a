// Package queue defines the guarantee lifecycle events exchanged over the
// message broker and the background consumer that records them.
package queue

// Event types published to the guarantee.events queue.
const (
	EventCreated      = "guarantee.created"
	EventValidated    = "guarantee.validated"
	EventCompleted    = "guarantee.completed"
	EventCharged      = "guarantee.charged"
	EventChargeFailed = "guarantee.charge_failed"
	EventCancelled    = "guarantee.cancelled"
)

// GuaranteeEvent is published on every lifecycle transition.  It carries
// enough for downstream consumers (audit log, analytics, dashboards) to act
// without querying the primary database.
type GuaranteeEvent struct {
	Type                  string `json:"type"`
	SessionID             uint64 `json:"session_id"`
	MerchantID            uint64 `json:"merchant_id"`
	ExternalReservationID string `json:"external_reservation_id"`
	Status                string `json:"status"`
	PartySize             int    `json:"party_size"`
	AmountCents           int64  `json:"amount_cents,omitempty"`
	Currency              string `json:"currency,omitempty"`
	FailureReason         string `json:"failure_reason,omitempty"`
	OccurredAt            string `json:"occurred_at"`
}
