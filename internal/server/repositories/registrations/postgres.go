package registrations

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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.Registration, error) {
	query :=
		`SELECT phone_number, nickname, created_at, contract_address, is_confirmed FROM registration
		 WHERE phone_number = $1
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	reg := &models.Registration{}
	err := r.db.QueryRowContext(ctx, query, phoneNumber).
		Scan(&reg.PhoneNumber, &reg.Nickname, &reg.CreatedAt, &reg.ContractAddress, &reg.IsConfirmed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return reg, nil
}

func (r *PostgresRepository) Create(ctx context.Context, phoneNumber, nickname string, createdAt time.Time) error {
	query :=
		`INSERT INTO registration (phone_number, nickname, created_at)
		 VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, phoneNumber, nickname, createdAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
