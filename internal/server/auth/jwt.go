// Package auth mints and parses the short-lived tokens that authorize a
// single claim submission after a successful OTP verification.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the verified phone number; the registered ID holds the
// token id recorded against the OTP row.
type Claims struct {
	jwt.RegisteredClaims
	PhoneNumber string `json:"phone_number"`
}

func GenerateToken(phone, tokenID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		PhoneNumber: phone,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the phone number and token id.
func ParseToken(tokenString string, secretKey []byte) (string, string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", common.ErrTokenExpired
		}
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid || claims.PhoneNumber == "" || claims.ID == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.PhoneNumber, claims.ID, nil
}
