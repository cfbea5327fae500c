// Package registrations declares and implements persistence for phone-number
// registrations.
package registrations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/server/models"
)

// Repository stores at most one Registration per phone number.
type Repository interface {
	// FindByPhone returns the registration for phoneNumber, or
	// common.ErrorNotFound.
	FindByPhone(ctx context.Context, phoneNumber string) (*models.Registration, error)

	// Create inserts a new registration. A concurrent insert of the same phone
	// number yields common.ErrorAlreadyExists.
	Create(ctx context.Context, phoneNumber, nickname string, createdAt time.Time) error
}
