// Package signing verifies claim signatures. A claim is signed as an
// EIP-191 personal message over
//
//	keccak256(address[20] || uint256(nonce) || amount)
//
// where amount is the canonical decimal string, so wallets can sign it with
// personal_sign and the server can recover the signer address.
package signing

import (
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAddress   = fmt.Errorf("%w: address", common.ErrorInvalid)
	ErrInvalidNonce     = fmt.Errorf("%w: nonce", common.ErrorInvalid)
	ErrInvalidSignature = fmt.Errorf("%w: signature", common.ErrorInvalid)
)

// ValidateAddress checks that s is a 20-byte hex address and returns its
// EIP-55 checksummed form, which is what claims are keyed on.
func ValidateAddress(s string) (string, error) {
	if !ethcommon.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return ethcommon.HexToAddress(s).Hex(), nil
}

// ClaimDigest returns the hash a signer signs for the claim.
func ClaimDigest(address string, nonce int64, amount decimal.Decimal) ([]byte, error) {
	if !ethcommon.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	if nonce < 0 {
		return nil, ErrInvalidNonce
	}
	payload := crypto.Keccak256(
		ethcommon.HexToAddress(address).Bytes(),
		ethcommon.LeftPadBytes(big.NewInt(nonce).Bytes(), 32),
		[]byte(amount.String()),
	)
	return accounts.TextHash(payload), nil
}

// RecoverSigner returns the checksummed address that produced sigHex over
// digest. V may be 0/1 or 27/28.
func RecoverSigner(digest []byte, sigHex string) (string, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	// copy so the caller's bytes stay untouched
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
