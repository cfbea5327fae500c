package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the quorum state of a claim.
type ClaimStatus string

const (
	// ClaimCollecting means fewer than Required distinct signers have signed.
	ClaimCollecting ClaimStatus = "collecting"
	// ClaimReady means the quorum is reached and the claim can be finalized.
	ClaimReady ClaimStatus = "ready"
	// ClaimFinalized is terminal; no more signatures are accepted.
	ClaimFinalized ClaimStatus = "finalized"
)

// Claim is a request to transfer value to Address, unique per (Address, Nonce).
// Signatures and Signers are parallel, append-only sequences.
type Claim struct {
	ID         string
	Address    string
	Nonce      int64
	Amount     decimal.Decimal
	Signatures []string
	Signers    []string
	Required   int
	Status     ClaimStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasSigner reports whether signer already signed the claim.
func (c *Claim) HasSigner(signer string) bool {
	for _, s := range c.Signers {
		if s == signer {
			return true
		}
	}
	return false
}

// ClaimLimit is an externally populated per-address ceiling on claim amounts.
type ClaimLimit struct {
	Address        string
	Limit          decimal.Decimal
	BlockTimestamp time.Time
}
