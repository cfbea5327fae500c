// Package common defines shared sentinel errors and small helpers used across
// the claimgate server layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorConflict       = errors.New("conflict")
	ErrorRateLimited    = errors.New("already requested")
	ErrorDeliveryFailed = errors.New("delivery failed")

	// Verification errors.
	ErrorExpired = errors.New("expired")
	ErrorInvalid = errors.New("invalid")

	ErrorCodeUsed     = fmt.Errorf("%w: code already used", ErrorInvalid)
	ErrorCodeMismatch = fmt.Errorf("%w: mismatch", ErrorInvalid)

	// Claim errors.
	ErrorDuplicateSigner = fmt.Errorf("%w: duplicate signer", ErrorInvalid)
	ErrorAmountMismatch  = fmt.Errorf("%w: amount mismatch", ErrorInvalid)
	ErrorClaimClosed     = errors.New("claim finalized")
	ErrorLimitExceeded   = errors.New("amount exceeds claim limit")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenUsed    = errors.New("token already used")
)
