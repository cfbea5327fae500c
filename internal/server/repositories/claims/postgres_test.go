package claims

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ   = `(?s)INSERT\s+INTO\s+claims\s*\(id,\s*address,\s*nonce,\s*amount,\s*signature,\s*signers,\s*required,\s*status,\s*created_at,\s*updated_at\).*ON\s+CONFLICT\s*\(address,\s*nonce\)\s+DO\s+NOTHING`
	appendQ   = `(?s)UPDATE\s+claims\s+SET\s+signature\s*=\s*array_append\(signature,\s*\$4\).*WHERE\s+address\s*=\s*\$1\s+AND\s+nonce\s*=\s*\$2\s+AND\s+amount\s*=\s*\$3::numeric.*NOT\s+\(\$5\s*=\s*ANY\(signers\)\)\s+RETURNING`
	byPairQ   = `(?s)SELECT\s+id::text,.*FROM\s+claims\s+WHERE\s+address\s*=\s*\$1\s+AND\s+nonce\s*=\s*\$2`
	byIDQ     = `(?s)SELECT\s+id::text,.*FROM\s+claims\s+WHERE\s+id\s*=\s*\$1`
	finalizeQ = `(?s)UPDATE\s+claims\s+SET\s+status\s*=\s*'finalized'.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'ready'\s+RETURNING`
)

const (
	addr = "0x52908400098527886E0F7030069857D2E4169EE7"
	id   = "6f1c2b8e-3f7e-4a59-9a4b-2a3b7c1d9e10"
)

var columns = []string{"id", "address", "nonce", "amount", "signature", "signers", "required", "status", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func newClaim(now time.Time) *models.Claim {
	return &models.Claim{
		ID:         id,
		Address:    addr,
		Nonce:      7,
		Amount:     decimal.RequireFromString("12.5"),
		Signatures: []string{"0xsig1"},
		Signers:    []string{"0xsigner1"},
		Required:   2,
		Status:     models.ClaimCollecting,
		CreatedAt:  now,
	}
}

func TestCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("inserted", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).
			WithArgs(id, addr, int64(7), "12.5", "0xsig1", "0xsigner1", 2, "collecting", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		c := newClaim(now)
		require.NoError(t, repo.Create(context.Background(), c))
		assert.Equal(t, now, c.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pair already present", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Create(context.Background(), newClaim(now))
		require.ErrorIs(t, err, common.ErrorAlreadyExists)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).WillReturnError(errors.New("boom"))

		err := repo.Create(context.Background(), newClaim(now))
		require.ErrorContains(t, err, "db error: boom")
	})

	t.Run("needs exactly one signature", func(t *testing.T) {
		repo, _ := newRepoWithMock(t)
		c := newClaim(now)
		c.Signatures = append(c.Signatures, "0xsig2")

		require.Error(t, repo.Create(context.Background(), c))
	})
}

func TestAppendSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	created := now.Add(-5 * time.Minute)
	amount := decimal.RequireFromString("12.5")

	t.Run("appended and promoted", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows(columns).AddRow(id, addr, int64(7), "12.5",
			`["0xsig1","0xsig2"]`, `["0xsigner1","0xsigner2"]`, 2, "ready", created, now)
		mock.ExpectQuery(appendQ).
			WithArgs(addr, int64(7), "12.5", "0xsig2", "0xsigner2", now).
			WillReturnRows(rows)

		c, err := repo.AppendSignature(context.Background(), addr, 7, amount, "0xsig2", "0xsigner2", now)
		require.NoError(t, err)
		assert.Equal(t, []string{"0xsig1", "0xsig2"}, c.Signatures)
		assert.Equal(t, []string{"0xsigner1", "0xsigner2"}, c.Signers)
		assert.Equal(t, models.ClaimReady, c.Status)
		assert.True(t, c.Amount.Equal(amount))
	})

	t.Run("condition did not hold", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(appendQ).WillReturnError(sql.ErrNoRows)

		_, err := repo.AppendSignature(context.Background(), addr, 7, amount, "0xsig1", "0xsigner1", now)
		require.ErrorIs(t, err, common.ErrorConflict)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(appendQ).WillReturnError(errors.New("boom"))

		_, err := repo.AppendSignature(context.Background(), addr, 7, amount, "0xsig1", "0xsigner1", now)
		require.ErrorContains(t, err, "db error: boom")
	})
}

func TestFind(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("by pair", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows(columns).AddRow(id, addr, int64(7), "12.5", `["0xsig1"]`, `["0xsigner1"]`, 2, "collecting", created, created)
		mock.ExpectQuery(byPairQ).WithArgs(addr, int64(7)).WillReturnRows(rows)

		c, err := repo.FindByAddressNonce(context.Background(), addr, 7)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID)
		assert.Equal(t, models.ClaimCollecting, c.Status)
		assert.Equal(t, 2, c.Required)
	})

	t.Run("by id missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(byIDQ).WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(context.Background(), id)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("corrupt signature array", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows(columns).AddRow(id, addr, int64(7), "12.5", `not json`, `[]`, 2, "collecting", created, created)
		mock.ExpectQuery(byIDQ).WithArgs(id).WillReturnRows(rows)

		_, err := repo.FindByID(context.Background(), id)
		require.ErrorContains(t, err, "decode signatures")
	})
}

func TestFinalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	t.Run("ready claim", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows(columns).AddRow(id, addr, int64(7), "12.5",
			`["0xsig1","0xsig2"]`, `["0xsigner1","0xsigner2"]`, 2, "finalized", now, now)
		mock.ExpectQuery(finalizeQ).WithArgs(id, now).WillReturnRows(rows)

		c, err := repo.Finalize(context.Background(), id, now)
		require.NoError(t, err)
		assert.Equal(t, models.ClaimFinalized, c.Status)
	})

	t.Run("not ready", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(finalizeQ).WithArgs(id, now).WillReturnError(sql.ErrNoRows)

		_, err := repo.Finalize(context.Background(), id, now)
		require.ErrorIs(t, err, common.ErrorConflict)
	})
}
