package limits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByAddress(ctx context.Context, address string) (*models.ClaimLimit, error) {
	query := `
		SELECT address, "limit", block_timestamp
		FROM mock_limit
		WHERE lower(address) = lower($1)
	`
	var (
		l     models.ClaimLimit
		limit sql.NullString
		ts    sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, address).Scan(&l.Address, &limit, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	// a row without a value places no ceiling
	if !limit.Valid || limit.String == "" {
		return nil, common.ErrorNotFound
	}

	value, err := decimal.NewFromString(limit.String)
	if err != nil {
		return nil, fmt.Errorf("malformed limit for %s: %w", l.Address, err)
	}
	l.Limit = value
	l.BlockTimestamp = ts.Time
	return &l, nil
}
