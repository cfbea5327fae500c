package services

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/server/models"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/claims"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/limits"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/otps"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/registrations"
	"github.com/dmitrijs2005/claimgate/internal/server/signing"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// In-memory repositories that honour the same conditional-write contracts
// as the PostgreSQL ones.

type memRegistrations struct {
	mu        sync.Mutex
	rows      map[string]*models.Registration
	findErr   error
	createErr error
	creates   int
}

func newMemRegistrations() *memRegistrations {
	return &memRegistrations{rows: map[string]*models.Registration{}}
}

func (m *memRegistrations) FindByPhone(ctx context.Context, phone string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.rows[phone]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRegistrations) Create(ctx context.Context, phone, nickname string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.rows[phone]; ok {
		return common.ErrorAlreadyExists
	}
	m.creates++
	m.rows[phone] = &models.Registration{PhoneNumber: phone, Nickname: nickname, CreatedAt: createdAt}
	return nil
}

type memOTPs struct {
	mu      sync.Mutex
	rows    map[string]*models.OTP
	findErr error
	upserts int
}

func newMemOTPs() *memOTPs {
	return &memOTPs{rows: map[string]*models.OTP{}}
}

func (m *memOTPs) FindByPhone(ctx context.Context, phone string) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.rows[phone]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOTPs) Upsert(ctx context.Context, phone, code string, now, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.rows[phone]; ok && !o.CreatedAt.Before(cutoff) {
		return common.ErrorRateLimited
	}
	m.upserts++
	m.rows[phone] = &models.OTP{PhoneNumber: phone, Code: code, CreatedAt: now}
	return nil
}

func (m *memOTPs) MarkUsed(ctx context.Context, phone, code string, createdAt time.Time, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[phone]
	if !ok || o.Used || o.Code != code || !o.CreatedAt.Equal(createdAt) {
		return common.ErrorCodeUsed
	}
	o.Used = true
	o.TokenID = tokenID
	return nil
}

func (m *memOTPs) ConsumeToken(ctx context.Context, phone, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[phone]
	if !ok || o.TokenID == "" || o.TokenID != tokenID {
		return common.ErrTokenUsed
	}
	o.TokenID = ""
	return nil
}

type claimKey struct {
	address string
	nonce   int64
}

type memClaims struct {
	mu   sync.Mutex
	rows map[claimKey]*models.Claim
	// raced simulates a concurrent insert: the claim appears right as Create runs.
	raced *models.Claim
}

func newMemClaims() *memClaims {
	return &memClaims{rows: map[claimKey]*models.Claim{}}
}

func cloneClaim(c *models.Claim) *models.Claim {
	cp := *c
	cp.Signatures = append([]string(nil), c.Signatures...)
	cp.Signers = append([]string(nil), c.Signers...)
	return &cp
}

func (m *memClaims) Create(ctx context.Context, c *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raced != nil {
		m.rows[claimKey{m.raced.Address, m.raced.Nonce}] = cloneClaim(m.raced)
		m.raced = nil
	}
	k := claimKey{c.Address, c.Nonce}
	if _, ok := m.rows[k]; ok {
		return common.ErrorAlreadyExists
	}
	c.UpdatedAt = c.CreatedAt
	m.rows[k] = cloneClaim(c)
	return nil
}

func (m *memClaims) AppendSignature(ctx context.Context, address string, nonce int64, amount decimal.Decimal,
	signature, signer string, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[claimKey{address, nonce}]
	if !ok || !c.Amount.Equal(amount) || c.Status == models.ClaimFinalized || c.HasSigner(signer) {
		return nil, common.ErrorConflict
	}
	c.Signatures = append(c.Signatures, signature)
	c.Signers = append(c.Signers, signer)
	if c.Status == models.ClaimCollecting && len(c.Signers) >= c.Required {
		c.Status = models.ClaimReady
	}
	c.UpdatedAt = now
	return cloneClaim(c), nil
}

func (m *memClaims) FindByAddressNonce(ctx context.Context, address string, nonce int64) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[claimKey{address, nonce}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneClaim(c), nil
}

func (m *memClaims) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			return cloneClaim(c), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memClaims) Finalize(ctx context.Context, id string, now time.Time) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id && c.Status == models.ClaimReady {
			c.Status = models.ClaimFinalized
			c.UpdatedAt = now
			return cloneClaim(c), nil
		}
	}
	return nil, common.ErrorConflict
}

type memLimits struct {
	rows map[string]decimal.Decimal
	err  error
}

func (m *memLimits) FindByAddress(ctx context.Context, address string) (*models.ClaimLimit, error) {
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.rows[address]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ClaimLimit{Address: address, Limit: l}, nil
}

type memRepoManager struct {
	regs   *memRegistrations
	otps   *memOTPs
	claims *memClaims
	limits *memLimits
}

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		regs:   newMemRegistrations(),
		otps:   newMemOTPs(),
		claims: newMemClaims(),
		limits: &memLimits{rows: map[string]decimal.Decimal{}},
	}
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *memRepoManager) Registrations(dbx.DBTX) registrations.Repository { return m.regs }
func (m *memRepoManager) OTPs(dbx.DBTX) otps.Repository                   { return m.otps }
func (m *memRepoManager) Claims(dbx.DBTX) claims.Repository               { return m.claims }
func (m *memRepoManager) Limits(dbx.DBTX) limits.Repository               { return m.limits }

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingSender remembers what it was asked to deliver.
type recordingSender struct {
	mu        sync.Mutex
	sent      []string
	delivered bool
	err       error
}

func (s *recordingSender) Send(ctx context.Context, code, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, code)
	if s.err != nil {
		return false, s.err
	}
	return s.delivered, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

// signClaim signs (address, nonce, amount) the way a wallet would.
func signClaim(t *testing.T, key *ecdsa.PrivateKey, address string, nonce int64, amount decimal.Decimal) string {
	t.Helper()
	digest, err := signing.ClaimDigest(address, nonce, amount)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}
