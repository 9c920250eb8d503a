package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/tablekeep/guarantee-service/internal/model"
)

// SessionRepo provides persistence for guarantee sessions.  The sessions
// row is the only shared mutable resource in the system; every mutation
// goes through a per-id compare-and-set UPDATE (WHERE id = ? AND status = ?)
// so concurrent requests cannot both pass a state precondition.  Rows are
// never deleted.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `id, merchant_id, external_reservation_id, customer_name,
       customer_email, customer_phone, party_size, reservation_at, status,
       penalty_cents_per_person, currency, capture_session_ref, capture_url,
       authorization_ref, merchant_customer_ref, charged_amount_cents,
       charged_at, validated_at, reminder_count, automation_json,
       created_at, updated_at`

// scanSession reads one session row.  The automation context is stored as a
// JSON blob because the service treats it as opaque passthrough data.
func scanSession(row interface{ Scan(...interface{}) error }) (*model.GuaranteeSession, error) {
	var (
		s              model.GuaranteeSession
		email, phone   sql.NullString
		captureRef     sql.NullString
		captureURL     sql.NullString
		authRef        sql.NullString
		custRef        sql.NullString
		chargedCents   sql.NullInt64
		chargedAt      sql.NullTime
		validatedAt    sql.NullTime
		automationJSON sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.MerchantID, &s.ExternalReservationID, &s.CustomerName,
		&email, &phone, &s.PartySize, &s.ReservationAt, &s.Status,
		&s.PenaltyCentsPerPerson, &s.Currency, &captureRef, &captureURL,
		&authRef, &custRef, &chargedCents,
		&chargedAt, &validatedAt, &s.ReminderCount, &automationJSON,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CustomerEmail = email.String
	s.CustomerPhone = phone.String
	s.CaptureSessionRef = captureRef.String
	s.CaptureURL = captureURL.String
	if authRef.Valid {
		v := authRef.String
		s.AuthorizationRef = &v
	}
	if custRef.Valid {
		v := custRef.String
		s.MerchantCustomerRef = &v
	}
	if chargedCents.Valid {
		v := chargedCents.Int64
		s.ChargedAmountCents = &v
	}
	if chargedAt.Valid {
		t := chargedAt.Time.UTC()
		s.ChargedAt = &t
	}
	if validatedAt.Valid {
		t := validatedAt.Time.UTC()
		s.ValidatedAt = &t
	}
	if automationJSON.Valid && automationJSON.String != "" {
		_ = json.Unmarshal([]byte(automationJSON.String), &s.Automation)
	}
	return &s, nil
}

// Create inserts a new session in pending state together with any outbox
// messages for creation-time side effects, atomically.  The unique key on
// (merchant_id, external_reservation_id) enforces idempotent creation;
// a duplicate insert returns ErrSessionExists so the caller can re-read the
// existing row instead of erroring.
func (r *SessionRepo) Create(ctx context.Context, s *model.GuaranteeSession, outbox []model.OutboxMessage) error {
	automationJSON, err := json.Marshal(s.Automation)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO guarantee_sessions
	           (merchant_id, external_reservation_id, customer_name, customer_email,
	            customer_phone, party_size, reservation_at, status,
	            penalty_cents_per_person, currency, capture_session_ref, capture_url,
	            reminder_count, automation_json)
	           VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0,?)`
	result, err := tx.ExecContext(ctx, q,
		s.MerchantID, s.ExternalReservationID, s.CustomerName, nullString(s.CustomerEmail),
		nullString(s.CustomerPhone), s.PartySize, s.ReservationAt.UTC(), model.StatusPending,
		s.PenaltyCentsPerPerson, s.Currency, nullString(s.CaptureSessionRef), nullString(s.CaptureURL),
		string(automationJSON),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrSessionExists
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Status = model.StatusPending
	for i := range outbox {
		outbox[i].GuaranteeSessionID = s.ID
	}
	if err := insertOutboxTx(ctx, tx, outbox); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ByID returns a session by internal id, or ErrSessionNotFound.
func (r *SessionRepo) ByID(ctx context.Context, id uint64) (*model.GuaranteeSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM guarantee_sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ByExternalID returns the session for a merchant's external reservation
// id, the idempotency key for creation.
func (r *SessionRepo) ByExternalID(ctx context.Context, merchantID uint64, externalID string) (*model.GuaranteeSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM guarantee_sessions
	           WHERE merchant_id = ? AND external_reservation_id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, merchantID, externalID))
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ByCaptureRef resolves a session from the capture-session reference
// embedded in a processor callback.
func (r *SessionRepo) ByCaptureRef(ctx context.Context, captureRef string) (*model.GuaranteeSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM guarantee_sessions WHERE capture_session_ref = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, captureRef))
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ListByMerchant returns all sessions for a merchant, newest first.
func (r *SessionRepo) ListByMerchant(ctx context.Context, merchantID uint64) ([]model.GuaranteeSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM guarantee_sessions
	           WHERE merchant_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := make([]model.GuaranteeSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Validate performs the pending -> validated transition, storing the
// authorization and customer references, together with the outbox messages
// for the automation callback and validation notices.  The status
// precondition is part of the UPDATE itself; zero rows affected means
// another delivery of the same callback already won, and ErrConflict is
// returned so the caller can acknowledge without reprocessing.
func (r *SessionRepo) Validate(ctx context.Context, id uint64, authRef, customerRef string, at time.Time, outbox []model.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE guarantee_sessions
	           SET status = ?, authorization_ref = ?, merchant_customer_ref = ?, validated_at = ?
	           WHERE id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, q,
		model.StatusValidated, authRef, customerRef, at.UTC(), id, model.StatusPending)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	for i := range outbox {
		outbox[i].GuaranteeSessionID = id
	}
	if err := insertOutboxTx(ctx, tx, outbox); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Transition performs a plain compare-and-set status change with no other
// field updates.  ErrConflict is returned when the current status is not
// one of the expected from-states.
func (r *SessionRepo) Transition(ctx context.Context, id uint64, from []model.SessionStatus, to model.SessionStatus) error {
	q := `UPDATE guarantee_sessions SET status = ?
	      WHERE id = ? AND charge_claimed = 0 AND status IN (` + statusPlaceholders(len(from)) + `)`
	args := []interface{}{to, id}
	for _, st := range from {
		args = append(args, st)
	}
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ClaimCharge marks a session as having a charge in flight.  The claim is a
// compare-and-set against both the chargeable statuses and the claim flag,
// so two concurrent no-show reports result in exactly one claim; the loser
// receives ErrConflict.  The claim is released by FinishCharge.
func (r *SessionRepo) ClaimCharge(ctx context.Context, id uint64) error {
	const q = `UPDATE guarantee_sessions SET charge_claimed = 1
	           WHERE id = ? AND charge_claimed = 0 AND status IN (?, ?)`
	result, err := r.db.ExecContext(ctx, q, id, model.StatusValidated, model.StatusNoshowFailed)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ReleaseCharge clears a claim without recording an outcome.  Used only
// when the charge could not even be attempted (for example the
// authorization reference is missing); attempted charges always finish
// through FinishCharge so a ledger row exists.
func (r *SessionRepo) ReleaseCharge(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE guarantee_sessions SET charge_claimed = 0 WHERE id = ?`, id)
	return err
}

// FinishCharge records the outcome of a claimed charge attempt atomically:
// the status transition, the charged amount on success, the append-only
// ledger row, any outbox messages, and the claim release all commit
// together.  charge.Status decides whether charged_amount_cents and
// charged_at are set.
func (r *SessionRepo) FinishCharge(ctx context.Context, id uint64, to model.SessionStatus, charge model.NoshowCharge, at time.Time, outbox []model.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if charge.Status == model.ChargeSucceeded {
		const q = `UPDATE guarantee_sessions
		           SET status = ?, charged_amount_cents = ?, charged_at = ?, charge_claimed = 0
		           WHERE id = ? AND charge_claimed = 1`
		result, err := tx.ExecContext(ctx, q, to, charge.AmountCents, at.UTC(), id)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrConflict
		}
	} else {
		const q = `UPDATE guarantee_sessions SET status = ?, charge_claimed = 0
		           WHERE id = ? AND charge_claimed = 1`
		result, err := tx.ExecContext(ctx, q, to, id)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrConflict
		}
	}
	charge.GuaranteeSessionID = id
	if err := insertChargeTx(ctx, tx, &charge); err != nil {
		return err
	}
	for i := range outbox {
		outbox[i].GuaranteeSessionID = id
	}
	if err := insertOutboxTx(ctx, tx, outbox); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetCaptureSession stores a freshly issued capture-session reference and
// hosted URL, together with any customer notices rendered against that URL.
// Used after creation and by resend, which also bumps the reminder counter.
// The notice insert rides the same transaction so a queued notice always
// points at the link the row carries.
func (r *SessionRepo) SetCaptureSession(ctx context.Context, id uint64, ref, url string, bumpReminder bool, outbox []model.OutboxMessage) error {
	bump := 0
	if bumpReminder {
		bump = 1
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE guarantee_sessions
	           SET capture_session_ref = ?, capture_url = ?, reminder_count = reminder_count + ?
	           WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, ref, url, bump, id); err != nil {
		return err
	}
	for i := range outbox {
		outbox[i].GuaranteeSessionID = id
	}
	if err := insertOutboxTx(ctx, tx, outbox); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Cancel moves a pending or validated session to cancelled.  A session with
// a charge in flight cannot be cancelled out from under the charge.
func (r *SessionRepo) Cancel(ctx context.Context, id uint64) error {
	return r.Transition(ctx, id, []model.SessionStatus{model.StatusPending, model.StatusValidated}, model.StatusCancelled)
}

func statusPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
