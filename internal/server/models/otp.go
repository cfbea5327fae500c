package models

import "time"

// OTP is the single live one-time passcode for a phone number. Reissue
// overwrites Code and CreatedAt and clears Used and TokenID.
type OTP struct {
	PhoneNumber string
	Code        string
	Used        bool
	CreatedAt   time.Time
	// TokenID is the id of the claim authorization token minted when the
	// code was verified. Empty until verification and after the token is
	// consumed.
	TokenID string
}

// Age reports how long ago the code was issued.
func (o *OTP) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}
