package claims

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/shopspring/decimal"
)

// claimColumns is shared by every statement that returns a claim row; arrays
// come back as JSON text so they scan through database/sql unchanged.
const claimColumns = `id::text, address, nonce, amount::text,
		array_to_json(signature)::text, array_to_json(signers)::text,
		required, status, created_at, updated_at`

// PostgresRepository implements claim storage over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Claim) error {
	if len(c.Signatures) != 1 || len(c.Signers) != 1 {
		return fmt.Errorf("new claim must carry exactly one signature, got %d", len(c.Signatures))
	}

	query := `
		INSERT INTO claims (id, address, nonce, amount, signature, signers, required, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, ARRAY[$5]::text[], ARRAY[$6]::text[], $7, $8, $9, $9)
		ON CONFLICT (address, nonce) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.Address, c.Nonce, c.Amount.String(), c.Signatures[0], c.Signers[0], c.Required, string(c.Status), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}

	c.UpdatedAt = c.CreatedAt
	return nil
}

func (r *PostgresRepository) AppendSignature(ctx context.Context, address string, nonce int64, amount decimal.Decimal,
	signature, signer string, now time.Time) (*models.Claim, error) {

	query := `
		UPDATE claims SET
			signature = array_append(signature, $4),
			signers = array_append(signers, $5),
			status = CASE
				WHEN status = 'collecting' AND cardinality(signers) + 1 >= required THEN 'ready'
				ELSE status
			END,
			updated_at = $6
		WHERE address = $1 AND nonce = $2 AND amount = $3::numeric
			AND status <> 'finalized'
			AND NOT ($5 = ANY(signers))
		RETURNING ` + claimColumns

	c, err := scanClaim(r.db.QueryRowContext(ctx, query, address, nonce, amount.String(), signature, signer, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) FindByAddressNonce(ctx context.Context, address string, nonce int64) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE address = $1 AND nonce = $2`
	return r.findOne(ctx, query, address, nonce)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string, now time.Time) (*models.Claim, error) {
	query := `
		UPDATE claims SET status = 'finalized', updated_at = $2
		WHERE id = $1 AND status = 'ready'
		RETURNING ` + claimColumns

	c, err := scanClaim(r.db.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.Claim, error) {
	c, err := scanClaim(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func scanClaim(row *sql.Row) (*models.Claim, error) {
	var (
		c          models.Claim
		status     string
		signatures string
		signers    string
	)
	err := row.Scan(&c.ID, &c.Address, &c.Nonce, &c.Amount, &signatures, &signers,
		&c.Required, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(signatures), &c.Signatures); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	if err := json.Unmarshal([]byte(signers), &c.Signers); err != nil {
		return nil, fmt.Errorf("decode signers: %w", err)
	}
	c.Status = models.ClaimStatus(status)
	return &c, nil
}
