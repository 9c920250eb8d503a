package model

import "time"

// OutboxKind identifies what a queued outbox message delivers.
type OutboxKind string

const (
	OutboxAutomation OutboxKind = "automation_callback" // webhook to the downstream automation engine
	OutboxEmail      OutboxKind = "email_notice"        // customer email notice
	OutboxSms        OutboxKind = "sms_notice"          // customer SMS notice
)

// OutboxStatus tracks delivery progress of an outbox message.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed" // attempts exhausted, needs manual retry
)

// OutboxMessage records an intended side effect in the same transaction as
// the state change that caused it.  The dispatcher delivers pending rows
// asynchronously with backoff, so a crash between "state committed" and
// "side effect sent" is recovered on the next poll instead of lost.
type OutboxMessage struct {
	ID                 uint64       `json:"id"`
	GuaranteeSessionID uint64       `json:"guarantee_session_id"`
	Kind               OutboxKind   `json:"kind"`
	Payload            []byte       `json:"payload"` // JSON body for the delivery
	Status             OutboxStatus `json:"status"`
	Attempts           int          `json:"attempts"`
	NextAttemptAt      time.Time    `json:"next_attempt_at"`
	LastError          string       `json:"last_error,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}
