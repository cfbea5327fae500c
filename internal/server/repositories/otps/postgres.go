package otps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
)

// PostgresRepository implements the OTP ledger over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.OTP, error) {
	query := `
		SELECT phone_number, otp, used, created_at, COALESCE(token_id::text, '')
		FROM otp
		WHERE phone_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	o := &models.OTP{}
	err := r.db.QueryRowContext(ctx, query, phoneNumber).
		Scan(&o.PhoneNumber, &o.Code, &o.Used, &o.CreatedAt, &o.TokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, phoneNumber, code string, now, cutoff time.Time) error {
	query := `
		INSERT INTO otp (phone_number, otp, used, created_at, token_id)
		VALUES ($1, $2, FALSE, $3, NULL)
		ON CONFLICT (phone_number)
		DO UPDATE SET
			otp = EXCLUDED.otp,
			used = FALSE,
			created_at = EXCLUDED.created_at,
			token_id = NULL
			WHERE otp.created_at < $4
	`
	res, err := r.db.ExecContext(ctx, query, phoneNumber, code, now, cutoff)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, common.ErrorRateLimited)
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, phoneNumber, code string, createdAt time.Time, tokenID string) error {
	query := `
		UPDATE otp SET used = TRUE, token_id = $4
		WHERE phone_number = $1 AND otp = $2 AND created_at = $3 AND used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, phoneNumber, code, createdAt, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, common.ErrorCodeUsed)
}

func (r *PostgresRepository) ConsumeToken(ctx context.Context, phoneNumber, tokenID string) error {
	query := `
		UPDATE otp SET token_id = NULL
		WHERE phone_number = $1 AND token_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, phoneNumber, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, common.ErrTokenUsed)
}

// expectOneRow maps "no row matched the condition" to onZero.
func expectOneRow(res sql.Result, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return onZero
	case 1:
		return nil
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
