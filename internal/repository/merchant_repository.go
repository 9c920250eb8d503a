package repository

import (
	"context"
	"database/sql"
)

// MerchantRepo resolves machine API keys and operator credentials to
// merchant ids.  API keys are stored as SHA-256 hashes; operator passwords
// as bcrypt hashes.  Full user management lives outside this service.
type MerchantRepo struct{ DB *sql.DB }

func NewMerchantRepo(db *sql.DB) *MerchantRepo { return &MerchantRepo{DB: db} }

// ByAPIKeyHash returns the merchant id owning an active API key hash.
func (r *MerchantRepo) ByAPIKeyHash(ctx context.Context, keyHash string) (uint64, error) {
	var merchantID uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT merchant_id FROM merchant_api_keys WHERE key_hash=? AND revoked_at IS NULL LIMIT 1",
		keyHash).Scan(&merchantID)
	if err != nil {
		return 0, err
	}
	return merchantID, nil
}

// CreateAPIKey stores the hash of a freshly issued machine API key.  The
// raw key is shown to the merchant once and never persisted.
func (r *MerchantRepo) CreateAPIKey(ctx context.Context, merchantID uint64, keyHash, label string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO merchant_api_keys (merchant_id, key_hash, label) VALUES (?,?,?)",
		merchantID, keyHash, label)
	return err
}

// CreateOperator stores an operator credential.  The login is unique; a
// duplicate insert fails at the database.
func (r *MerchantRepo) CreateOperator(ctx context.Context, merchantID uint64, login, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO merchant_operators (merchant_id, login, password_hash) VALUES (?,?,?)",
		merchantID, login, passwordHash)
	return err
}

// OperatorCredential returns the merchant id and bcrypt password hash for
// an operator login name.
func (r *MerchantRepo) OperatorCredential(ctx context.Context, login string) (uint64, string, error) {
	var (
		merchantID   uint64
		passwordHash string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT merchant_id, password_hash FROM merchant_operators WHERE login=? LIMIT 1",
		login).Scan(&merchantID, &passwordHash)
	if err != nil {
		return 0, "", err
	}
	return merchantID, passwordHash, nil
}
