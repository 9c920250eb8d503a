package repository

import (
	"context"
	"database/sql"

	"github.com/tablekeep/guarantee-service/internal/model"
)

// PolicyRepo reads and writes per-merchant guarantee policies.  One flat
// row per merchant; the policy table is written by the settings UI and read
// on every creation and status call.
type PolicyRepo struct {
	db *sql.DB
}

// NewPolicyRepo returns a PolicyRepo bound to the given database.
func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// ByMerchant returns the policy for a merchant, or ErrPolicyNotFound.
func (r *PolicyRepo) ByMerchant(ctx context.Context, merchantID uint64) (*model.GuaranteePolicy, error) {
	const q = `SELECT merchant_id, enabled, penalty_cents_per_person, currency,
	                  cancellation_delay_hours, applicability_rule, min_party_size,
	                  merchant_sub_account_id, business_name, logo_url,
	                  auto_email_on_create, auto_sms_on_create,
	                  auto_email_on_validation, auto_sms_on_validation
	           FROM guarantee_policies WHERE merchant_id = ?`
	var (
		p          model.GuaranteePolicy
		subAccount sql.NullString
		bizName    sql.NullString
		logoURL    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, merchantID).Scan(
		&p.MerchantID, &p.Enabled, &p.PenaltyCentsPerPerson, &p.Currency,
		&p.CancellationDelayHrs, &p.Rule, &p.MinPartySize,
		&subAccount, &bizName, &logoURL,
		&p.AutoEmailOnCreate, &p.AutoSmsOnCreate,
		&p.AutoEmailOnValidation, &p.AutoSmsOnValidation,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	p.MerchantSubAccountID = subAccount.String
	p.BusinessName = bizName.String
	p.LogoURL = logoURL.String
	return &p, nil
}

// Upsert writes a merchant's policy, inserting or replacing the single row.
func (r *PolicyRepo) Upsert(ctx context.Context, p *model.GuaranteePolicy) error {
	const q = `INSERT INTO guarantee_policies
	           (merchant_id, enabled, penalty_cents_per_person, currency,
	            cancellation_delay_hours, applicability_rule, min_party_size,
	            merchant_sub_account_id, business_name, logo_url,
	            auto_email_on_create, auto_sms_on_create,
	            auto_email_on_validation, auto_sms_on_validation)
	           VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	           ON DUPLICATE KEY UPDATE
	            enabled = VALUES(enabled),
	            penalty_cents_per_person = VALUES(penalty_cents_per_person),
	            currency = VALUES(currency),
	            cancellation_delay_hours = VALUES(cancellation_delay_hours),
	            applicability_rule = VALUES(applicability_rule),
	            min_party_size = VALUES(min_party_size),
	            merchant_sub_account_id = VALUES(merchant_sub_account_id),
	            business_name = VALUES(business_name),
	            logo_url = VALUES(logo_url),
	            auto_email_on_create = VALUES(auto_email_on_create),
	            auto_sms_on_create = VALUES(auto_sms_on_create),
	            auto_email_on_validation = VALUES(auto_email_on_validation),
	            auto_sms_on_validation = VALUES(auto_sms_on_validation)`
	_, err := r.db.ExecContext(ctx, q,
		p.MerchantID, p.Enabled, p.PenaltyCentsPerPerson, p.Currency,
		p.CancellationDelayHrs, p.Rule, p.MinPartySize,
		nullString(p.MerchantSubAccountID), nullString(p.BusinessName), nullString(p.LogoURL),
		p.AutoEmailOnCreate, p.AutoSmsOnCreate,
		p.AutoEmailOnValidation, p.AutoSmsOnValidation,
	)
	return err
}
