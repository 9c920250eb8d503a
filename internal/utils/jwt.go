package utils // package utils provides helpers for token issuing, key hashing and date parsing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorToken is a signed JWT granting dashboard access scoped to one
// merchant.  The Token field contains the serialized JWT; Exp its UTC
// expiration.
type OperatorToken struct {
	Token string
	Exp   time.Time
}

// NewOperatorToken builds and signs an HS256 JWT for an operator.  The
// claims carry the merchant id as the subject so middleware can scope every
// request to the merchant that owns the session being acted on.
func NewOperatorToken(secret string, merchantID uint64, ttlMin int) (OperatorToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": merchantID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return OperatorToken{}, err
	}
	return OperatorToken{Token: signed, Exp: exp}, nil
}

// NewAPIKey returns a fresh machine API key (raw form handed to the
// caller once) together with the SHA-256 hash stored in the database.
func NewAPIKey() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = "gk_" + hex.EncodeToString(buf)
	return raw, HashAPIKey(raw), nil
}

// HashAPIKey returns the SHA-256 hash of a raw API key as a hex string.
// Only the hash is persisted so a leaked database cannot be replayed as
// credentials.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
