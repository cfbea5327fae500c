// Package claims declares the claim authorization store: claim records unique
// per (address, nonce) that accumulate signatures until a quorum is reached.
package claims

import (
	"context"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository defines claim persistence. Every mutation is a single
// conditional statement so concurrent callers are arbitrated by PostgreSQL.
type Repository interface {
	// Create inserts claim with its first signature. If a claim for the same
	// (address, nonce) already exists nothing is written and
	// common.ErrorAlreadyExists is returned.
	Create(ctx context.Context, claim *models.Claim) error

	// AppendSignature appends signature/signer to the claim for
	// (address, nonce) provided the amount matches, the signer is new and the
	// claim is not finalized; status moves to ready once the quorum is met.
	// common.ErrorConflict is returned when the condition did not hold.
	AppendSignature(ctx context.Context, address string, nonce int64, amount decimal.Decimal,
		signature, signer string, now time.Time) (*models.Claim, error)

	// FindByAddressNonce returns the claim or common.ErrorNotFound.
	FindByAddressNonce(ctx context.Context, address string, nonce int64) (*models.Claim, error)

	// FindByID returns the claim or common.ErrorNotFound.
	FindByID(ctx context.Context, id string) (*models.Claim, error)

	// Finalize moves a ready claim to finalized. common.ErrorConflict when
	// the claim is not ready.
	Finalize(ctx context.Context, id string, now time.Time) (*models.Claim, error)
}
