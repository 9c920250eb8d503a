package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The processor signs each callback with a header of the form
//
//	t=<unix seconds>,v1=<hex hmac-sha256>
//
// where the MAC covers "<t>.<raw body>" keyed with the endpoint secret.
// Verification is a hard authentication boundary: a callback that does not
// verify is rejected before any business logic runs.

// ErrBadSignature is returned for a missing, malformed, stale or
// non-matching callback signature.
var ErrBadSignature = errors.New("processor: invalid callback signature")

// DefaultSignatureTolerance bounds how old a signed callback may be before
// it is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks the signature header against the raw callback
// body.  now is injected for testability; pass time.Now() in production
// code.
func VerifySignature(secret, header string, body []byte, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrBadSignature
	}
	var tsPart, sigPart string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			tsPart = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			sigPart = strings.TrimPrefix(part, "v1=")
		}
	}
	if tsPart == "" || sigPart == "" {
		return ErrBadSignature
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrBadSignature
		}
	}
	expected := ComputeSignature(secret, ts, body)
	provided, err := hex.DecodeString(sigPart)
	if err != nil {
		return ErrBadSignature
	}
	decoded, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, decoded) {
		return ErrBadSignature
	}
	return nil
}

// ComputeSignature returns the hex MAC for a timestamp and body.  Exposed
// so tests can build valid callback requests.
func ComputeSignature(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
