// Package otps declares the OTP ledger: one live one-time passcode per phone
// number, mutated only through conditional writes.
package otps

import (
	"context"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/server/models"
)

// Repository defines the OTP ledger operations.
type Repository interface {
	// FindByPhone returns the live OTP for phoneNumber, or common.ErrorNotFound.
	FindByPhone(ctx context.Context, phoneNumber string) (*models.OTP, error)

	// Upsert stores code as the live OTP issued at now, resetting used and
	// token id. An existing record is overwritten only if it was issued
	// before cutoff; otherwise common.ErrorRateLimited is returned and
	// nothing changes.
	Upsert(ctx context.Context, phoneNumber, code string, now, cutoff time.Time) error

	// MarkUsed flips used from false to true for the exact record observed
	// (code and createdAt) and records tokenID. common.ErrorCodeUsed is
	// returned when another caller won the race.
	MarkUsed(ctx context.Context, phoneNumber, code string, createdAt time.Time, tokenID string) error

	// ConsumeToken clears tokenID so the authorization it represents can be
	// spent only once. common.ErrTokenUsed when it is no longer present.
	ConsumeToken(ctx context.Context, phoneNumber, tokenID string) error
}
