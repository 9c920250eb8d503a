// Package repository implements MySQL persistence for guarantee policies,
// sessions, the no-show charge ledger and the side-effect outbox.  Sentinel
// errors defined here let handlers distinguish failure scenarios without
// inspecting driver errors: ErrConflict maps to HTTP 409, ErrForbidden to
// 403, the not-found values to 404.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// session owned by a different merchant.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a state transition is not permitted from the
// session's current status, including the case where a concurrent request
// already claimed or performed the transition.
var ErrConflict = errors.New("conflict")

// ErrSessionNotFound is returned when no guarantee session matches the
// requested id or external reservation id.
var ErrSessionNotFound = errors.New("guarantee session not found")

// ErrSessionExists is returned by Create when a session already exists for
// the merchant and external reservation id.  Callers treat it as the
// idempotent-retry signal, not a failure.
var ErrSessionExists = errors.New("guarantee session already exists")

// ErrPolicyNotFound is returned when a merchant has no guarantee policy row.
var ErrPolicyNotFound = errors.New("guarantee policy not found")

// ErrChargeAlreadySucceeded is returned when a succeeded ledger row already
// exists for a session; at most one successful charge is allowed.
var ErrChargeAlreadySucceeded = errors.New("charge already succeeded for session")
