package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tablekeep/guarantee-service/internal/model"
)

// OutboxRepo stores intended side effects (automation callbacks, customer
// notices) written atomically with session state transitions, and serves
// them to the background dispatcher.  A row moves pending -> delivered, or
// pending -> failed once its attempts are exhausted; failed rows stay
// visible for manual retry.
type OutboxRepo struct {
	db *sql.DB
}

// NewOutboxRepo returns an OutboxRepo bound to the given database.
func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// insertOutboxTx appends outbox rows within an existing transaction.  An
// empty slice is a no-op.
func insertOutboxTx(ctx context.Context, tx *sql.Tx, messages []model.OutboxMessage) error {
	if len(messages) == 0 {
		return nil
	}
	query := `INSERT INTO outbox_messages
	          (guarantee_session_id, kind, payload, status, attempts, next_attempt_at) VALUES `
	args := make([]interface{}, 0, len(messages)*6)
	now := time.Now().UTC()
	for i, m := range messages {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?,?,0,?)"
		args = append(args, m.GuaranteeSessionID, m.Kind, m.Payload, model.OutboxPending, now)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Due returns up to limit pending messages whose next attempt time has
// passed, oldest first.
func (r *OutboxRepo) Due(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	const q = `SELECT id, guarantee_session_id, kind, payload, status, attempts,
	                  next_attempt_at, last_error, created_at
	           FROM outbox_messages
	           WHERE status = ? AND next_attempt_at <= UTC_TIMESTAMP()
	           ORDER BY id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := make([]model.OutboxMessage, 0)
	for rows.Next() {
		var (
			m       model.OutboxMessage
			lastErr sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.GuaranteeSessionID, &m.Kind, &m.Payload,
			&m.Status, &m.Attempts, &m.NextAttemptAt, &lastErr, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.LastError = lastErr.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkDelivered finalizes a successfully delivered message.
func (r *OutboxRepo) MarkDelivered(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = ?, last_error = NULL WHERE id = ?`,
		model.OutboxDelivered, id)
	return err
}

// MarkAttemptFailed records a failed delivery attempt.  When attempts
// remain, the message stays pending with the next attempt scheduled at
// nextAttempt; otherwise it is parked as failed for manual retry.
func (r *OutboxRepo) MarkAttemptFailed(ctx context.Context, id uint64, attempts int, nextAttempt time.Time, lastErr string, exhausted bool) error {
	status := model.OutboxPending
	if exhausted {
		status = model.OutboxFailed
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = ?, attempts = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		status, attempts, nextAttempt.UTC(), lastErr, id)
	return err
}

// Retry moves a failed message back to pending for another delivery cycle.
// Exposed to the operator dashboard's manual-retry action.
func (r *OutboxRepo) Retry(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = ?, next_attempt_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		model.OutboxPending, id, model.OutboxFailed)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// AutomationState returns the delivery status of the automation callback
// for a session, so the dashboard can show "validated, automation not yet
// confirmed" as its own state.  Returns empty when no automation message
// exists yet.
func (r *OutboxRepo) AutomationState(ctx context.Context, sessionID uint64) (model.OutboxStatus, error) {
	const q = `SELECT status FROM outbox_messages
	           WHERE guarantee_session_id = ? AND kind = ?
	           ORDER BY id DESC LIMIT 1`
	var status model.OutboxStatus
	err := r.db.QueryRowContext(ctx, q, sessionID, model.OutboxAutomation).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}
