package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/claims"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/limits"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/otps"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/registrations"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Registrations(db dbx.DBTX) registrations.Repository
	OTPs(db dbx.DBTX) otps.Repository
	Claims(db dbx.DBTX) claims.Repository
	Limits(db dbx.DBTX) limits.Repository
}
