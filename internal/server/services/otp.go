package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/auth"
	"github.com/dmitrijs2005/claimgate/internal/server/config"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/claimgate/internal/server/sms"
	"github.com/google/uuid"
)

// CodeLength is the number of digits in an issued code.
const CodeLength = 6

// OTPService issues and redeems one-time passcodes. Cooldown and single use
// are enforced by conditional writes in the OTP ledger, so any number of
// instances can run against the same database.
type OTPService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	sender            sms.Sender
	logger            logging.Logger
	jwtSecret         []byte
	validity          time.Duration
	authTokenValidity time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewOTPService(db *sql.DB, m repomanager.RepositoryManager, sender sms.Sender, logger logging.Logger, cfg *config.Config) *OTPService {
	return &OTPService{
		db:                db,
		repomanager:       m,
		sender:            sender,
		logger:            logger,
		jwtSecret:         []byte(cfg.SecretKey),
		validity:          cfg.OTPValidity,
		authTokenValidity: cfg.AuthTokenValidity,
		now:               time.Now,
		newCode:           func() (string, error) { return common.MakeNumericCode(CodeLength) },
	}
}

// RequestOTP registers phoneNumber on first contact and sends it a fresh
// code, unless a code was issued within the validity window. The code is
// recorded only after the channel confirmed delivery.
func (s *OTPService) RequestOTP(ctx context.Context, phoneNumber, nickname string) error {
	if err := s.ensureRegistration(ctx, phoneNumber, nickname); err != nil {
		return err
	}

	now := s.now()
	otps := s.repomanager.OTPs(s.db)

	current, err := otps.FindByPhone(ctx, phoneNumber)
	switch {
	case err == nil:
		// used or not, a recent code blocks reissue
		if current.Age(now) <= s.validity {
			return common.ErrorRateLimited
		}
	case errors.Is(err, common.ErrorNotFound):
	default:
		return fmt.Errorf("%w: find otp: %v", common.ErrorInternal, err)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("%w: generate code: %v", common.ErrorInternal, err)
	}

	delivered, err := s.sender.Send(ctx, code, phoneNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorDeliveryFailed, err)
	}
	if !delivered {
		return common.ErrorDeliveryFailed
	}

	// another request may have issued a code since the check above; the
	// conditional upsert decides which one stands
	if err := otps.Upsert(ctx, phoneNumber, code, now, now.Add(-s.validity)); err != nil {
		if errors.Is(err, common.ErrorRateLimited) {
			s.logger.Warn(ctx, "otp delivered but lost the issue race", "phone_number", phoneNumber)
			return err
		}
		return fmt.Errorf("%w: upsert otp: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "otp issued", "phone_number", phoneNumber)
	return nil
}

func (s *OTPService) ensureRegistration(ctx context.Context, phoneNumber, nickname string) error {
	regs := s.repomanager.Registrations(s.db)

	_, err := regs.FindByPhone(ctx, phoneNumber)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: find registration: %v", common.ErrorInternal, err)
	}

	if err := regs.Create(ctx, phoneNumber, nickname, s.now()); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("%w: phone number already exists", common.ErrorConflict)
		}
		return fmt.Errorf("%w: create registration: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "registration created", "phone_number", phoneNumber)
	return nil
}

// VerifyOTP redeems code for phoneNumber and returns a token that
// authorizes exactly one claim submission.
func (s *OTPService) VerifyOTP(ctx context.Context, phoneNumber, code string) (string, error) {
	otps := s.repomanager.OTPs(s.db)

	current, err := otps.FindByPhone(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("%w: find otp: %v", common.ErrorInternal, err)
	}

	if current.Used {
		return "", common.ErrorCodeUsed
	}
	if current.Age(s.now()) > s.validity {
		return "", common.ErrorExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(current.Code)) != 1 {
		return "", common.ErrorCodeMismatch
	}

	tokenID := uuid.NewString()
	token, err := auth.GenerateToken(phoneNumber, tokenID, s.jwtSecret, s.authTokenValidity)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %v", common.ErrorInternal, err)
	}

	if err := otps.MarkUsed(ctx, phoneNumber, current.Code, current.CreatedAt, tokenID); err != nil {
		if errors.Is(err, common.ErrorCodeUsed) {
			return "", err
		}
		return "", fmt.Errorf("%w: mark otp used: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "otp verified", "phone_number", phoneNumber)
	return token, nil
}
