package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tablekeep/guarantee-service/internal/model"
	"github.com/tablekeep/guarantee-service/internal/processor"
	q "github.com/tablekeep/guarantee-service/internal/queue"
	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/utils"
)

// SessionStore is the persistence surface the orchestrator needs for
// guarantee sessions.  The MySQL implementation lives in the repository
// package; tests use an in-memory stub with the same compare-and-set
// semantics.
type SessionStore interface {
	Create(ctx context.Context, s *model.GuaranteeSession, outbox []model.OutboxMessage) error
	ByID(ctx context.Context, id uint64) (*model.GuaranteeSession, error)
	ByExternalID(ctx context.Context, merchantID uint64, externalID string) (*model.GuaranteeSession, error)
	ByCaptureRef(ctx context.Context, captureRef string) (*model.GuaranteeSession, error)
	ListByMerchant(ctx context.Context, merchantID uint64) ([]model.GuaranteeSession, error)
	Validate(ctx context.Context, id uint64, authRef, customerRef string, at time.Time, outbox []model.OutboxMessage) error
	Transition(ctx context.Context, id uint64, from []model.SessionStatus, to model.SessionStatus) error
	ClaimCharge(ctx context.Context, id uint64) error
	ReleaseCharge(ctx context.Context, id uint64) error
	FinishCharge(ctx context.Context, id uint64, to model.SessionStatus, charge model.NoshowCharge, at time.Time, outbox []model.OutboxMessage) error
	SetCaptureSession(ctx context.Context, id uint64, ref, url string, bumpReminder bool, outbox []model.OutboxMessage) error
	Cancel(ctx context.Context, id uint64) error
}

// PolicyStore reads per-merchant guarantee policies.
type PolicyStore interface {
	ByMerchant(ctx context.Context, merchantID uint64) (*model.GuaranteePolicy, error)
}

// ChargeStore reads the no-show charge ledger.
type ChargeStore interface {
	ListBySession(ctx context.Context, sessionID uint64) ([]model.NoshowCharge, error)
	HasSucceeded(ctx context.Context, sessionID uint64) (bool, error)
}

// OutboxStore reads side-effect delivery state for the dashboard.
type OutboxStore interface {
	AutomationState(ctx context.Context, sessionID uint64) (model.OutboxStatus, error)
}

// ErrProcessorNotReady is returned when a no-show charge is requested but
// the merchant sub-account is missing or not charge-capable.  At creation
// time the same condition is a structured "not required" result instead.
var ErrProcessorNotReady = errors.New("processor sub-account not ready")

// ErrMissingAuthorization is returned when a validated session has no
// stored authorization reference to charge against.
var ErrMissingAuthorization = errors.New("no authorization reference on session")

// Reasons carried in structured results and automation payloads.
const (
	ReasonDisabled          = "guarantee_disabled"
	ReasonPartyBelowMinimum = "party_below_minimum"
	ReasonNotWeekend        = "not_weekend"
	ReasonProcessorNotReady = "processor_not_ready"
	ReasonAwaitingValidation = "awaiting_validation"
	ReasonValidated          = "payment_method_validated"
	ReasonFinalized          = "session_finalized"
)

// GuaranteeService orchestrates the guarantee session lifecycle: creation
// with applicability and readiness gating, webhook-driven validation, the
// no-show charge, and the supporting resend/cancel/query operations.
type GuaranteeService struct {
	sessions SessionStore
	policies PolicyStore
	charges  ChargeStore
	outbox   OutboxStore
	gateway  processor.Gateway

	// publish sends lifecycle events to the broker; best-effort, may be nil.
	publish func(ctx context.Context, event q.GuaranteeEvent) error
	// publicBaseURL is where the hosted capture flow returns the customer.
	publicBaseURL string
	now           func() time.Time
}

// NewGuaranteeService wires the orchestrator.  publish may be nil to
// disable event publishing (tests, single-binary deployments without a
// broker).
func NewGuaranteeService(sessions SessionStore, policies PolicyStore, charges ChargeStore, outbox OutboxStore, gateway processor.Gateway, publicBaseURL string, publish func(ctx context.Context, event q.GuaranteeEvent) error) *GuaranteeService {
	if sessions == nil || policies == nil || gateway == nil {
		panic("nil dependency passed to NewGuaranteeService")
	}
	return &GuaranteeService{
		sessions:      sessions,
		policies:      policies,
		charges:       charges,
		outbox:        outbox,
		gateway:       gateway,
		publish:       publish,
		publicBaseURL: publicBaseURL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ----- Creation -----

// CreateSessionInput is one create-session request from a machine caller.
// ReservationDate is free text; see utils.ParseReservationDate for the
// accepted forms and the documented fallback.
type CreateSessionInput struct {
	MerchantID            uint64
	ExternalReservationID string
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
	PartySize             int
	ReservationDate       string
	Automation            model.AutomationContext
}

// CreateSessionResult is the structured outcome of a create call.  Callers
// (the automation workflow) branch on Required and CanBookResource; both
// configuration outcomes and successes come back this way so the caller
// never has to treat "no guarantee needed" as an error.
type CreateSessionResult struct {
	Required        bool                    `json:"required"`
	Reason          string                  `json:"reason,omitempty"`
	CanBookResource bool                    `json:"can_book_resource"`
	PaymentURL      string                  `json:"payment_url,omitempty"`
	Session         *model.GuaranteeSession `json:"session,omitempty"`
}

func notRequired(reason string) *CreateSessionResult {
	// A reservation without a guarantee may still be booked; the flag tells
	// the workflow to proceed without waiting for validation.
	return &CreateSessionResult{Required: false, Reason: reason, CanBookResource: true}
}

// CreateSession validates applicability, opens a hosted capture session
// with the processor and persists a new guarantee session in pending state.
// It is idempotent on (merchant id, external reservation id): a retry
// returns the existing session's current state without a second processor
// call.
func (svc *GuaranteeService) CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResult, error) {
	// Idempotency first: a retry observes current state with no further
	// processor interaction.
	if existing, err := svc.sessions.ByExternalID(ctx, in.MerchantID, in.ExternalReservationID); err == nil {
		return svc.replayResult(ctx, existing)
	} else if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}

	policy, err := svc.policies.ByMerchant(ctx, in.MerchantID)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return notRequired(ReasonDisabled), nil
		}
		return nil, err
	}
	if !policy.Enabled {
		return notRequired(ReasonDisabled), nil
	}
	if policy.MerchantSubAccountID == "" {
		// Enabled but never connected to the processor: a readiness gap,
		// not a disabled guarantee.
		return notRequired(ReasonProcessorNotReady), nil
	}

	loc := time.UTC
	if in.Automation.Timezone != "" {
		if parsed, err := time.LoadLocation(in.Automation.Timezone); err == nil {
			loc = parsed
		}
	}
	reservationAt, parsed := utils.ParseReservationDate(in.ReservationDate, loc)
	if !parsed {
		// Documented leniency: unattended callers must not lose a guarantee
		// over a date format, so fall back to now and flag it loudly.
		log.Printf("guarantee: unparseable reservation date %q for merchant=%d reservation=%s; falling back to now",
			in.ReservationDate, in.MerchantID, in.ExternalReservationID)
	}

	if in.PartySize < 1 {
		in.PartySize = 1
	}
	switch policy.Rule {
	case model.RuleMinPartySize:
		if in.PartySize < policy.MinPartySize {
			return notRequired(ReasonPartyBelowMinimum), nil
		}
	case model.RuleWeekendOnly:
		if !utils.IsWeekendReservation(reservationAt) {
			return notRequired(ReasonNotWeekend), nil
		}
	}

	// Readiness is a structured outcome, never an error: the workflow
	// depends on this response to decide whether to proceed unprotected.
	account, err := svc.gateway.AccountStatus(ctx, policy.MerchantSubAccountID)
	if err != nil || !account.ChargesEnabled {
		if err != nil {
			log.Printf("guarantee: account status check failed for merchant=%d: %v", in.MerchantID, err)
		}
		return notRequired(ReasonProcessorNotReady), nil
	}

	session := &model.GuaranteeSession{
		MerchantID:            in.MerchantID,
		ExternalReservationID: in.ExternalReservationID,
		CustomerName:          in.CustomerName,
		CustomerEmail:         in.CustomerEmail,
		CustomerPhone:         in.CustomerPhone,
		PartySize:             in.PartySize,
		ReservationAt:         reservationAt,
		Status:                model.StatusPending,
		PenaltyCentsPerPerson: policy.PenaltyCentsPerPerson,
		Currency:              policy.Currency,
		Automation:            in.Automation,
	}
	if err := svc.sessions.Create(ctx, session, nil); err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			// Lost a creation race; the winner's row is the session.
			existing, err := svc.sessions.ByExternalID(ctx, in.MerchantID, in.ExternalReservationID)
			if err != nil {
				return nil, err
			}
			return svc.replayResult(ctx, existing)
		}
		return nil, err
	}

	capture, err := svc.openCaptureSession(ctx, policy, session)
	if err != nil {
		// The pending row stays; resend (or an idempotent retry) issues a
		// fresh capture session.
		return nil, fmt.Errorf("create capture session: %w", err)
	}

	svc.emit(ctx, q.GuaranteeEvent{
		Type:                  q.EventCreated,
		SessionID:             session.ID,
		MerchantID:            session.MerchantID,
		ExternalReservationID: session.ExternalReservationID,
		Status:                string(session.Status),
		PartySize:             session.PartySize,
		OccurredAt:            svc.now().Format(time.RFC3339),
	})

	return &CreateSessionResult{
		Required:        true,
		Reason:          ReasonAwaitingValidation,
		CanBookResource: false, // never before validation
		PaymentURL:      capture.URL,
		Session:         session,
	}, nil
}

// replayResult maps an existing session onto the structured create result
// so retried calls observe current state instead of an error.
func (svc *GuaranteeService) replayResult(ctx context.Context, session *model.GuaranteeSession) (*CreateSessionResult, error) {
	result := &CreateSessionResult{
		Required:   true,
		PaymentURL: session.CaptureURL,
		Session:    session,
	}
	switch session.Status {
	case model.StatusPending:
		result.Reason = ReasonAwaitingValidation
		if session.CaptureSessionRef == "" {
			// An earlier create persisted the row but failed before the
			// capture session was issued; heal on retry.
			if policy, err := svc.policies.ByMerchant(ctx, session.MerchantID); err == nil {
				if capture, err := svc.openCaptureSession(ctx, policy, session); err == nil {
					result.PaymentURL = capture.URL
				}
			}
		}
	case model.StatusValidated:
		result.Reason = ReasonValidated
		result.CanBookResource = true
	default:
		result.Reason = ReasonFinalized
	}
	return result, nil
}

func (svc *GuaranteeService) openCaptureSession(ctx context.Context, policy *model.GuaranteePolicy, session *model.GuaranteeSession) (*processor.CaptureSession, error) {
	capture, err := svc.gateway.CreateCaptureSession(ctx, processor.CaptureSessionRequest{
		SubAccountID:  policy.MerchantSubAccountID,
		CustomerEmail: session.CustomerEmail,
		CustomerName:  session.CustomerName,
		SuccessURL:    svc.publicBaseURL + "/guarantee/confirmed",
		CancelURL:     svc.publicBaseURL + "/guarantee/declined",
		Metadata: map[string]string{
			"guarantee_session_id":    fmt.Sprintf("%d", session.ID),
			"external_reservation_id": session.ExternalReservationID,
		},
	})
	if err != nil {
		return nil, err
	}
	// Customer notices are rendered only now, once the session id is
	// assigned and the capture URL exists: the queued payload is frozen at
	// insert time and must already carry the link the customer will follow.
	session.CaptureSessionRef = capture.Ref
	session.CaptureURL = capture.URL
	notices := svc.creationNotices(policy, session)
	if err := svc.sessions.SetCaptureSession(ctx, session.ID, capture.Ref, capture.URL, false, notices); err != nil {
		return nil, err
	}
	return capture, nil
}

// ----- Validation -----

// HandleCaptureCompleted processes a verified capture-completed callback.
// A nil return means the callback may be acknowledged; unknown capture
// references and repeat deliveries are acknowledged without reprocessing.
// An error return makes the HTTP handler answer non-2xx so the processor
// retries the delivery.
func (svc *GuaranteeService) HandleCaptureCompleted(ctx context.Context, captureRef string) error {
	session, err := svc.sessions.ByCaptureRef(ctx, captureRef)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// May legitimately arrive for a purged session or unrelated
			// activity on the account; a non-2xx would only cause a retry
			// storm.
			log.Printf("guarantee: callback for unknown capture ref %s; acknowledging", captureRef)
			return nil
		}
		return err
	}
	if session.Status != model.StatusPending {
		return nil // already validated or beyond
	}
	policy, err := svc.policies.ByMerchant(ctx, session.MerchantID)
	if err != nil {
		return err
	}
	auth, err := svc.gateway.GetAuthorization(ctx, policy.MerchantSubAccountID, captureRef)
	if err != nil {
		// Authorization not resolved, state not committed: fail so the
		// processor redelivers.
		return fmt.Errorf("resolve authorization: %w", err)
	}

	now := svc.now()
	outbox := []model.OutboxMessage{svc.automationMessage(session, true, ReasonValidated)}
	outbox = append(outbox, svc.validationNotices(policy, session)...)
	if err := svc.sessions.Validate(ctx, session.ID, auth.PaymentMethodRef, auth.CustomerRef, now, outbox); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil // concurrent delivery already validated
		}
		return err
	}

	svc.emit(ctx, q.GuaranteeEvent{
		Type:                  q.EventValidated,
		SessionID:             session.ID,
		MerchantID:            session.MerchantID,
		ExternalReservationID: session.ExternalReservationID,
		Status:                string(model.StatusValidated),
		PartySize:             session.PartySize,
		OccurredAt:            now.Format(time.RFC3339),
	})
	return nil
}

// ----- Attendance / charge -----

// Outcome is the operator-reported attendance result.
type Outcome string

const (
	OutcomeAttended Outcome = "attended"
	OutcomeNoshow   Outcome = "noshow"
)

// AttendanceResult reports what marking attendance did.  For a no-show,
// Charged and FailureReason describe the charge outcome; a decline is a
// successful request with Charged=false, not an HTTP error, so the
// operator UI can show "charge declined: <reason>".
type AttendanceResult struct {
	Status        model.SessionStatus `json:"status"`
	Charged       bool                `json:"charged"`
	AmountCents   int64               `json:"amount_cents,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// MarkAttendance finalizes a validated session.  Attended completes the
// session; noshow executes the penalty charge against the stored
// authorization.  The claim flag plus compare-and-set transitions guarantee
// that two concurrent no-show reports produce exactly one charge attempt.
func (svc *GuaranteeService) MarkAttendance(ctx context.Context, merchantID, sessionID uint64, outcome Outcome) (*AttendanceResult, error) {
	session, err := svc.sessions.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MerchantID != merchantID {
		return nil, repository.ErrForbidden
	}

	if outcome == OutcomeAttended {
		if err := svc.sessions.Transition(ctx, sessionID,
			[]model.SessionStatus{model.StatusValidated}, model.StatusCompleted); err != nil {
			return nil, err
		}
		svc.emit(ctx, q.GuaranteeEvent{
			Type:                  q.EventCompleted,
			SessionID:             session.ID,
			MerchantID:            session.MerchantID,
			ExternalReservationID: session.ExternalReservationID,
			Status:                string(model.StatusCompleted),
			PartySize:             session.PartySize,
			OccurredAt:            svc.now().Format(time.RFC3339),
		})
		return &AttendanceResult{Status: model.StatusCompleted}, nil
	}

	// No-show path.
	if !session.Status.Chargeable() {
		return nil, repository.ErrConflict
	}
	if svc.charges != nil {
		// Ledger backstop: a succeeded row alongside a still-chargeable
		// status means an earlier finalize was interrupted mid-flight.
		// Refuse rather than risk a second charge.
		succeeded, err := svc.charges.HasSucceeded(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if succeeded {
			return nil, repository.ErrChargeAlreadySucceeded
		}
	}
	policy, err := svc.policies.ByMerchant(ctx, session.MerchantID)
	if err != nil {
		return nil, err
	}
	if policy.MerchantSubAccountID == "" {
		return nil, ErrProcessorNotReady
	}
	account, err := svc.gateway.AccountStatus(ctx, policy.MerchantSubAccountID)
	if err != nil || !account.ChargesEnabled {
		return nil, ErrProcessorNotReady
	}

	// Claim before touching the processor so a concurrent report conflicts
	// here instead of double-charging.
	if err := svc.sessions.ClaimCharge(ctx, sessionID); err != nil {
		return nil, err
	}
	if session.AuthorizationRef == nil || *session.AuthorizationRef == "" {
		// Nothing was attempted; hand the claim back so the report can be
		// retried once the authorization is repaired.
		if err := svc.sessions.ReleaseCharge(ctx, sessionID); err != nil {
			log.Printf("guarantee: release charge claim for session %d failed: %v", sessionID, err)
		}
		return nil, ErrMissingAuthorization
	}

	amount := session.PenaltyTotalCents()
	customerRef := ""
	if session.MerchantCustomerRef != nil {
		customerRef = *session.MerchantCustomerRef
	}
	charge, chargeErr := svc.gateway.CreateOffSessionCharge(ctx, processor.ChargeRequest{
		SubAccountID:     policy.MerchantSubAccountID,
		CustomerRef:      customerRef,
		PaymentMethodRef: *session.AuthorizationRef,
		AmountCents:      amount,
		Currency:         session.Currency,
		Description:      "No-show fee for reservation " + session.ExternalReservationID,
	})

	now := svc.now()
	if chargeErr != nil {
		reason := chargeReason(chargeErr)
		ledger := model.NoshowCharge{
			AmountCents:   amount,
			Currency:      session.Currency,
			Status:        model.ChargeFailed,
			FailureReason: reason,
		}
		if err := svc.sessions.FinishCharge(ctx, sessionID, model.StatusNoshowFailed, ledger, now, nil); err != nil {
			return nil, err
		}
		svc.emit(ctx, q.GuaranteeEvent{
			Type:                  q.EventChargeFailed,
			SessionID:             session.ID,
			MerchantID:            session.MerchantID,
			ExternalReservationID: session.ExternalReservationID,
			Status:                string(model.StatusNoshowFailed),
			PartySize:             session.PartySize,
			AmountCents:           amount,
			Currency:              session.Currency,
			FailureReason:         reason,
			OccurredAt:            now.Format(time.RFC3339),
		})
		return &AttendanceResult{
			Status:        model.StatusNoshowFailed,
			AmountCents:   amount,
			Currency:      session.Currency,
			FailureReason: reason,
		}, nil
	}

	ledger := model.NoshowCharge{
		AmountCents:        amount,
		Currency:           session.Currency,
		Status:             model.ChargeSucceeded,
		ProcessorChargeRef: charge.Ref,
	}
	if err := svc.sessions.FinishCharge(ctx, sessionID, model.StatusNoshowCharged, ledger, now, nil); err != nil {
		// The processor charge went through but the record did not; this
		// must be reconciled by hand, so make it unmissable in the logs.
		log.Printf("guarantee: CRITICAL charge %s succeeded but session %d not finalized: %v", charge.Ref, sessionID, err)
		return nil, err
	}
	svc.emit(ctx, q.GuaranteeEvent{
		Type:                  q.EventCharged,
		SessionID:             session.ID,
		MerchantID:            session.MerchantID,
		ExternalReservationID: session.ExternalReservationID,
		Status:                string(model.StatusNoshowCharged),
		PartySize:             session.PartySize,
		AmountCents:           amount,
		Currency:              session.Currency,
		OccurredAt:            now.Format(time.RFC3339),
	})
	return &AttendanceResult{
		Status:      model.StatusNoshowCharged,
		Charged:     true,
		AmountCents: amount,
		Currency:    session.Currency,
	}, nil
}

// chargeReason maps a charge error onto the ledger failure reason.
func chargeReason(err error) string {
	var decline *processor.DeclineError
	if errors.As(err, &decline) {
		return decline.Reason()
	}
	if errors.Is(err, processor.ErrTimeout) {
		return "processor_timeout"
	}
	reason := err.Error()
	if len(reason) > 250 {
		reason = reason[:250]
	}
	return reason
}

// ----- Resend / cancel -----

// Resend issues a fresh capture session for a pending guarantee whose
// previous payment link has gone stale, bumps the reminder counter and
// queues a new notice to the customer.
func (svc *GuaranteeService) Resend(ctx context.Context, merchantID, sessionID uint64) (*model.GuaranteeSession, error) {
	session, err := svc.sessions.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MerchantID != merchantID {
		return nil, repository.ErrForbidden
	}
	if session.Status != model.StatusPending {
		return nil, repository.ErrConflict
	}
	policy, err := svc.policies.ByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	capture, err := svc.gateway.CreateCaptureSession(ctx, processor.CaptureSessionRequest{
		SubAccountID:  policy.MerchantSubAccountID,
		CustomerEmail: session.CustomerEmail,
		CustomerName:  session.CustomerName,
		SuccessURL:    svc.publicBaseURL + "/guarantee/confirmed",
		CancelURL:     svc.publicBaseURL + "/guarantee/declined",
		Metadata: map[string]string{
			"guarantee_session_id":    fmt.Sprintf("%d", session.ID),
			"external_reservation_id": session.ExternalReservationID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create capture session: %w", err)
	}
	session.CaptureSessionRef = capture.Ref
	session.CaptureURL = capture.URL
	notices := svc.reminderNotices(policy, session)
	if err := svc.sessions.SetCaptureSession(ctx, session.ID, capture.Ref, capture.URL, true, notices); err != nil {
		return nil, err
	}
	session.ReminderCount++
	return session, nil
}

// CancelSession moves a pending or validated session to cancelled.
func (svc *GuaranteeService) CancelSession(ctx context.Context, merchantID, sessionID uint64) error {
	session, err := svc.sessions.ByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.MerchantID != merchantID {
		return repository.ErrForbidden
	}
	if err := svc.sessions.Cancel(ctx, sessionID); err != nil {
		return err
	}
	svc.emit(ctx, q.GuaranteeEvent{
		Type:                  q.EventCancelled,
		SessionID:             session.ID,
		MerchantID:            session.MerchantID,
		ExternalReservationID: session.ExternalReservationID,
		Status:                string(model.StatusCancelled),
		PartySize:             session.PartySize,
		OccurredAt:            svc.now().Format(time.RFC3339),
	})
	return nil
}

// ----- Queries -----

// GuaranteeStatus is the read-only summary callers fetch before deciding
// whether to mention the guarantee to a customer.
type GuaranteeStatus struct {
	Enabled               bool   `json:"enabled"`
	PenaltyCentsPerPerson int64  `json:"penalty_cents_per_person,omitempty"`
	Currency              string `json:"currency,omitempty"`
	CancellationDelayHrs  int    `json:"cancellation_delay_hours,omitempty"`
}

// Status reports whether the guarantee is enabled for a merchant and, if
// so, the penalty and cancellation window.
func (svc *GuaranteeService) Status(ctx context.Context, merchantID uint64) (*GuaranteeStatus, error) {
	policy, err := svc.policies.ByMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return &GuaranteeStatus{Enabled: false}, nil
		}
		return nil, err
	}
	if !policy.Configured() {
		return &GuaranteeStatus{Enabled: false}, nil
	}
	return &GuaranteeStatus{
		Enabled:               true,
		PenaltyCentsPerPerson: policy.PenaltyCentsPerPerson,
		Currency:              policy.Currency,
		CancellationDelayHrs:  policy.CancellationDelayHrs,
	}, nil
}

// SessionDetail is a session together with its charge history and the
// delivery state of the automation callback, so the dashboard can show
// "validated, automation not yet confirmed" as a distinct state.
type SessionDetail struct {
	Session             *model.GuaranteeSession `json:"session"`
	Charges             []model.NoshowCharge    `json:"charges"`
	AutomationConfirmed bool                    `json:"automation_confirmed"`
}

// GetSession returns one session with its ledger and automation state.
func (svc *GuaranteeService) GetSession(ctx context.Context, merchantID, sessionID uint64) (*SessionDetail, error) {
	session, err := svc.sessions.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MerchantID != merchantID {
		return nil, repository.ErrForbidden
	}
	detail := &SessionDetail{Session: session, Charges: []model.NoshowCharge{}}
	if svc.charges != nil {
		charges, err := svc.charges.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		detail.Charges = charges
	}
	if svc.outbox != nil {
		state, err := svc.outbox.AutomationState(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		detail.AutomationConfirmed = state == model.OutboxDelivered
	}
	return detail, nil
}

// ListSessions returns all of a merchant's sessions, newest first.
func (svc *GuaranteeService) ListSessions(ctx context.Context, merchantID uint64) ([]model.GuaranteeSession, error) {
	return svc.sessions.ListByMerchant(ctx, merchantID)
}

// ----- Outbox payloads -----

// automationInstruction is the machine-readable block the downstream
// workflow branches on.  CanBookResource is only ever true after
// validation; the reason string keeps an ambiguous payload from being
// misread by a workflow author.
type automationInstruction struct {
	NextAction      string `json:"next_action"`
	CanBookResource bool   `json:"can_book_resource"`
	Reason          string `json:"reason"`
}

type automationPayload struct {
	SessionID             uint64                  `json:"session_id"`
	MerchantID            uint64                  `json:"merchant_id"`
	ExternalReservationID string                  `json:"external_reservation_id"`
	CustomerName          string                  `json:"customer_name"`
	CustomerEmail         string                  `json:"customer_email,omitempty"`
	CustomerPhone         string                  `json:"customer_phone,omitempty"`
	PartySize             int                     `json:"party_size"`
	ReservationAt         string                  `json:"reservation_at"`
	Context               model.AutomationContext `json:"context"`
	Instruction           automationInstruction   `json:"instruction"`
}

func (svc *GuaranteeService) automationMessage(session *model.GuaranteeSession, canBook bool, reason string) model.OutboxMessage {
	action := "wait_for_validation"
	if canBook {
		action = "book_resource"
	}
	payload, _ := json.Marshal(automationPayload{
		SessionID:             session.ID,
		MerchantID:            session.MerchantID,
		ExternalReservationID: session.ExternalReservationID,
		CustomerName:          session.CustomerName,
		CustomerEmail:         session.CustomerEmail,
		CustomerPhone:         session.CustomerPhone,
		PartySize:             session.PartySize,
		ReservationAt:         session.ReservationAt.Format(time.RFC3339),
		Context:               session.Automation,
		Instruction: automationInstruction{
			NextAction:      action,
			CanBookResource: canBook,
			Reason:          reason,
		},
	})
	return model.OutboxMessage{
		GuaranteeSessionID: session.ID,
		Kind:               model.OutboxAutomation,
		Payload:            payload,
	}
}

// noticePayload is what the notification dispatcher needs to render and
// send one customer notice.
type noticePayload struct {
	SessionID             uint64 `json:"session_id"`
	Template              string `json:"template"`
	To                    string `json:"to"`
	BusinessName          string `json:"business_name,omitempty"`
	PenaltyCentsPerPerson int64  `json:"penalty_cents_per_person"`
	Currency              string `json:"currency"`
	PartySize             int    `json:"party_size"`
	ReservationAt         string `json:"reservation_at"`
	CaptureURL            string `json:"capture_url,omitempty"`
}

func (svc *GuaranteeService) creationNotices(policy *model.GuaranteePolicy, session *model.GuaranteeSession) []model.OutboxMessage {
	return svc.notices(policy, session, "guarantee_created",
		policy.AutoEmailOnCreate, policy.AutoSmsOnCreate)
}

func (svc *GuaranteeService) reminderNotices(policy *model.GuaranteePolicy, session *model.GuaranteeSession) []model.OutboxMessage {
	return svc.notices(policy, session, "guarantee_reminder",
		policy.AutoEmailOnCreate, policy.AutoSmsOnCreate)
}

func (svc *GuaranteeService) validationNotices(policy *model.GuaranteePolicy, session *model.GuaranteeSession) []model.OutboxMessage {
	return svc.notices(policy, session, "guarantee_validated",
		policy.AutoEmailOnValidation, policy.AutoSmsOnValidation)
}

func (svc *GuaranteeService) notices(policy *model.GuaranteePolicy, session *model.GuaranteeSession, template string, email, sms bool) []model.OutboxMessage {
	var messages []model.OutboxMessage
	build := func(kind model.OutboxKind, to string) model.OutboxMessage {
		payload, _ := json.Marshal(noticePayload{
			SessionID:             session.ID,
			Template:              template,
			To:                    to,
			BusinessName:          policy.BusinessName,
			PenaltyCentsPerPerson: session.PenaltyCentsPerPerson,
			Currency:              session.Currency,
			PartySize:             session.PartySize,
			ReservationAt:         session.ReservationAt.Format(time.RFC3339),
			CaptureURL:            session.CaptureURL,
		})
		return model.OutboxMessage{GuaranteeSessionID: session.ID, Kind: kind, Payload: payload}
	}
	if email && session.CustomerEmail != "" {
		messages = append(messages, build(model.OutboxEmail, session.CustomerEmail))
	}
	if sms && session.CustomerPhone != "" {
		messages = append(messages, build(model.OutboxSms, session.CustomerPhone))
	}
	return messages
}

// emit publishes a lifecycle event, best-effort.
func (svc *GuaranteeService) emit(ctx context.Context, event q.GuaranteeEvent) {
	if svc.publish == nil {
		return
	}
	if err := svc.publish(ctx, event); err != nil {
		log.Printf("guarantee: publish %s for session %d failed: %v", event.Type, event.SessionID, err)
	}
}
