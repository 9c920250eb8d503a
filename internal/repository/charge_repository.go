package repository

import (
	"context"
	"database/sql"

	"github.com/tablekeep/guarantee-service/internal/model"
)

// ChargeRepo reads the append-only no-show charge ledger.  Rows are written
// only through SessionRepo.FinishCharge so the ledger entry and the status
// transition always commit together.
type ChargeRepo struct {
	db *sql.DB
}

// NewChargeRepo returns a ChargeRepo bound to the given database.
func NewChargeRepo(db *sql.DB) *ChargeRepo { return &ChargeRepo{db: db} }

// insertChargeTx appends one ledger row within an existing transaction.
// The partial unique index on (guarantee_session_id, status) for succeeded
// rows backs the at-most-one-successful-charge invariant at the storage
// level as well.
func insertChargeTx(ctx context.Context, tx *sql.Tx, c *model.NoshowCharge) error {
	const q = `INSERT INTO noshow_charges
	           (guarantee_session_id, amount_cents, currency, status, failure_reason, processor_charge_ref)
	           VALUES (?,?,?,?,?,?)`
	result, err := tx.ExecContext(ctx, q,
		c.GuaranteeSessionID, c.AmountCents, c.Currency, c.Status,
		nullString(c.FailureReason), nullString(c.ProcessorChargeRef))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// ListBySession returns all charge attempts for a session, oldest first.
func (r *ChargeRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.NoshowCharge, error) {
	const q = `SELECT id, guarantee_session_id, amount_cents, currency, status,
	                  failure_reason, processor_charge_ref, created_at
	           FROM noshow_charges WHERE guarantee_session_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	charges := make([]model.NoshowCharge, 0)
	for rows.Next() {
		var (
			c       model.NoshowCharge
			reason  sql.NullString
			procRef sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.GuaranteeSessionID, &c.AmountCents, &c.Currency,
			&c.Status, &reason, &procRef, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.FailureReason = reason.String
		c.ProcessorChargeRef = procRef.String
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// HasSucceeded reports whether a succeeded ledger row exists for a session.
func (r *ChargeRepo) HasSucceeded(ctx context.Context, sessionID uint64) (bool, error) {
	const q = `SELECT COUNT(1) FROM noshow_charges
	           WHERE guarantee_session_id = ? AND status = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, sessionID, model.ChargeSucceeded).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
