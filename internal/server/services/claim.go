package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/config"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/claims"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/claimgate/internal/server/signing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitOutcome tells whether a submission created the claim or joined it.
type SubmitOutcome string

const (
	Accepted SubmitOutcome = "accepted"
	Appended SubmitOutcome = "appended"
)

// ClaimRequest is one signer's submission for (Address, Nonce).
type ClaimRequest struct {
	Address   string
	Nonce     int64
	Amount    decimal.Decimal
	Signature string
}

// ClaimService collects signatures for claims until they reach quorum.
type ClaimService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	required    int

	now func() time.Time
}

func NewClaimService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, cfg *config.Config) *ClaimService {
	required := cfg.RequiredSignatures
	if required < 1 {
		required = 1
	}
	return &ClaimService{
		db:          db,
		repomanager: m,
		logger:      logger,
		required:    required,
		now:         time.Now,
	}
}

// SubmitClaim spends the authorization token (phoneNumber, tokenID) on req.
// The first submission for a pair creates the claim; later ones from new
// signers append to it. Token and claim are written in one transaction, so
// a rejected submission leaves the token unspent.
func (s *ClaimService) SubmitClaim(ctx context.Context, phoneNumber, tokenID string, req ClaimRequest) (*models.Claim, SubmitOutcome, error) {
	address, err := signing.ValidateAddress(req.Address)
	if err != nil {
		return nil, "", err
	}
	if !req.Amount.IsPositive() {
		return nil, "", fmt.Errorf("%w: amount must be positive", common.ErrorInvalid)
	}

	digest, err := signing.ClaimDigest(address, req.Nonce, req.Amount)
	if err != nil {
		return nil, "", err
	}
	signer, err := signing.RecoverSigner(digest, req.Signature)
	if err != nil {
		return nil, "", err
	}

	if err := s.checkLimit(ctx, address, req.Amount); err != nil {
		return nil, "", err
	}

	var (
		claim   *models.Claim
		outcome SubmitOutcome
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.OTPs(tx).ConsumeToken(ctx, phoneNumber, tokenID); err != nil {
			return err
		}

		repo := s.repomanager.Claims(tx)
		now := s.now()

		status := models.ClaimCollecting
		if s.required <= 1 {
			status = models.ClaimReady
		}
		c := &models.Claim{
			ID:         uuid.NewString(),
			Address:    address,
			Nonce:      req.Nonce,
			Amount:     req.Amount,
			Signatures: []string{req.Signature},
			Signers:    []string{signer},
			Required:   s.required,
			Status:     status,
			CreatedAt:  now,
		}

		err := repo.Create(ctx, c)
		if err == nil {
			claim, outcome = c, Accepted
			return nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return err
		}

		// lost the create, or the claim was there already: join it
		c, err = repo.AppendSignature(ctx, address, req.Nonce, req.Amount, req.Signature, signer, now)
		if err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return s.explainRejectedAppend(ctx, repo, address, req.Nonce, req.Amount, signer)
			}
			return err
		}
		claim, outcome = c, Appended
		return nil
	})
	if err != nil {
		return nil, "", classify(err, "submit claim")
	}

	s.logger.Info(ctx, "claim signature recorded",
		"claim_id", claim.ID, "outcome", string(outcome), "signer", signer,
		"signatures", len(claim.Signatures), "status", string(claim.Status))
	return claim, outcome, nil
}

func (s *ClaimService) checkLimit(ctx context.Context, address string, amount decimal.Decimal) error {
	limit, err := s.repomanager.Limits(s.db).FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("%w: find limit: %v", common.ErrorInternal, err)
	}
	if amount.GreaterThan(limit.Limit) {
		return common.ErrorLimitExceeded
	}
	return nil
}

// explainRejectedAppend reloads the claim to report why the conditional
// append matched nothing.
func (s *ClaimService) explainRejectedAppend(ctx context.Context, repo claims.Repository,
	address string, nonce int64, amount decimal.Decimal, signer string) error {

	c, err := repo.FindByAddressNonce(ctx, address, nonce)
	if err != nil {
		return err
	}
	switch {
	case c.Status == models.ClaimFinalized:
		return common.ErrorClaimClosed
	case !c.Amount.Equal(amount):
		return common.ErrorAmountMismatch
	case c.HasSigner(signer):
		return common.ErrorDuplicateSigner
	default:
		return common.ErrorConflict
	}
}

// GetClaim returns the claim with id.
func (s *ClaimService) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	c, err := s.repomanager.Claims(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, classify(err, "find claim")
	}
	return c, nil
}

// FinalizeClaim closes a claim that reached quorum.
func (s *ClaimService) FinalizeClaim(ctx context.Context, id string) (*models.Claim, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	repo := s.repomanager.Claims(s.db)

	c, err := repo.Finalize(ctx, id, s.now())
	if err == nil {
		s.logger.Info(ctx, "claim finalized", "claim_id", id)
		return c, nil
	}
	if !errors.Is(err, common.ErrorConflict) {
		return nil, classify(err, "finalize claim")
	}

	current, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify(err, "find claim")
	}
	if current.Status == models.ClaimFinalized {
		return nil, common.ErrorClaimClosed
	}
	return nil, fmt.Errorf("%w: claim has %d of %d signatures", common.ErrorConflict, len(current.Signers), current.Required)
}

// domainErrors pass through classify untouched.
var domainErrors = []error{
	common.ErrorNotFound,
	common.ErrorConflict,
	common.ErrorInvalid,
	common.ErrorClaimClosed,
	common.ErrorLimitExceeded,
	common.ErrTokenUsed,
	common.ErrInvalidToken,
	common.ErrTokenExpired,
}

// classify keeps domain errors and folds everything else into ErrorInternal.
func classify(err error, op string) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
