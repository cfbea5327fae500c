// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/migrations"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/claims"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/limits"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/otps"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/registrations"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories. Each
// factory binds to whatever DBTX it is given, so the same manager serves
// both plain connections and transactions.
type PostgresRepositoryManager struct{}

// Registrations returns a registrations.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Registrations(db dbx.DBTX) registrations.Repository {
	return registrations.NewPostgresRepository(db)
}

// OTPs returns an otps.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) OTPs(db dbx.DBTX) otps.Repository {
	return otps.NewPostgresRepository(db)
}

// Claims returns a claims.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Claims(db dbx.DBTX) claims.Repository {
	return claims.NewPostgresRepository(db)
}

// Limits returns a limits.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Limits(db dbx.DBTX) limits.Repository {
	return limits.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
