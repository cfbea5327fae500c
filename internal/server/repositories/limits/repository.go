// Package limits reads the per-address claim ceilings that the indexer
// publishes into mock_limit. This service never writes the table.
package limits

import (
	"context"

	"github.com/dmitrijs2005/claimgate/internal/server/models"
)

type Repository interface {
	// FindByAddress returns the ceiling for address, or common.ErrorNotFound
	// when the address has none.
	FindByAddress(ctx context.Context, address string) (*models.ClaimLimit, error)
}
