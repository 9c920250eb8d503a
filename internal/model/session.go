// Package model defines the domain records persisted by the guarantee
// service: per-merchant policies, guarantee sessions, the no-show charge
// ledger and outbox messages for deferred side effects.
package model

import "time"

// SessionStatus enumerates the closed set of guarantee session states.
// Transitions between states are restricted by the transition table below;
// any transition not listed there is rejected as a conflict.
type SessionStatus string

const (
	StatusPending       SessionStatus = "pending"        // created, card capture not yet completed
	StatusValidated     SessionStatus = "validated"      // card captured and authorized
	StatusCompleted     SessionStatus = "completed"      // guest attended, nothing to charge
	StatusCancelled     SessionStatus = "cancelled"      // cancelled before attendance was reported
	StatusNoshowCharged SessionStatus = "noshow_charged" // penalty charge succeeded
	StatusNoshowFailed  SessionStatus = "noshow_failed"  // penalty charge attempted and failed
)

// transitions is the closed from-state -> allowed to-states table.  It is
// the single source of truth for what the lifecycle permits.  The
// noshow_failed -> noshow_failed entry allows a retried charge to fail
// again and record another ledger row.
var transitions = map[SessionStatus][]SessionStatus{
	StatusPending:      {StatusValidated, StatusCancelled},
	StatusValidated:    {StatusCompleted, StatusNoshowCharged, StatusNoshowFailed, StatusCancelled},
	StatusNoshowFailed: {StatusNoshowCharged, StatusNoshowFailed},
}

// CanTransition reports whether moving from one status to another is
// permitted by the transition table.
func CanTransition(from, to SessionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Chargeable reports whether a no-show charge may still be attempted for a
// session in the given status.  A failed charge may be retried because no
// succeeded ledger row exists for it.
func (s SessionStatus) Chargeable() bool {
	return s == StatusValidated || s == StatusNoshowFailed
}

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// AutomationContext carries opaque scheduling fields supplied by the caller
// at creation time.  The service never interprets them; they are passed
// through to the downstream automation engine together with the booking
// control flags.  CallbackURL is where the automation callback is delivered.
type AutomationContext struct {
	CallbackURL  string `json:"callback_url,omitempty"`
	CalendarID   string `json:"calendar_id,omitempty"`
	BusinessType string `json:"business_type,omitempty"`
	DurationMin  int    `json:"duration_min,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

// GuaranteeSession is the per-reservation record tracking card authorization
// and no-show charge state.  It is never deleted; it is the permanent record
// of whether a reservation was protected and what happened to it.
//
// ExternalReservationID is the caller-supplied idempotency key, unique per
// merchant.  PenaltyCentsPerPerson is snapshotted from the policy at
// creation so later policy edits do not change what an existing session may
// charge.
type GuaranteeSession struct {
	ID                    uint64            `json:"id"`
	MerchantID            uint64            `json:"merchant_id"`
	ExternalReservationID string            `json:"external_reservation_id"`
	CustomerName          string            `json:"customer_name"`
	CustomerEmail         string            `json:"customer_email,omitempty"`
	CustomerPhone         string            `json:"customer_phone,omitempty"`
	PartySize             int               `json:"party_size"`
	ReservationAt         time.Time         `json:"reservation_at"`
	Status                SessionStatus     `json:"status"`
	PenaltyCentsPerPerson int64             `json:"penalty_cents_per_person"`
	Currency              string            `json:"currency"`
	CaptureSessionRef     string            `json:"capture_session_ref,omitempty"`
	CaptureURL            string            `json:"capture_url,omitempty"`
	AuthorizationRef      *string           `json:"authorization_ref,omitempty"`
	MerchantCustomerRef   *string           `json:"merchant_customer_ref,omitempty"`
	ChargedAmountCents    *int64            `json:"charged_amount_cents,omitempty"`
	ChargedAt             *time.Time        `json:"charged_at,omitempty"`
	ValidatedAt           *time.Time        `json:"validated_at,omitempty"`
	ReminderCount         int               `json:"reminder_count"`
	Automation            AutomationContext `json:"automation"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// PenaltyTotalCents returns the amount a no-show charge would collect:
// the snapshotted per-person penalty times the party size.
func (s *GuaranteeSession) PenaltyTotalCents() int64 {
	return s.PenaltyCentsPerPerson * int64(s.PartySize)
}
