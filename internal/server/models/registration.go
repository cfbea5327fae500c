// Package models defines server-side data models persisted in the database.
package models

import "time"

// Registration binds a phone number to a nickname. IsConfirmed and
// ContractAddress are managed by a downstream confirmation step.
type Registration struct {
	PhoneNumber     string
	Nickname        string
	CreatedAt       time.Time
	ContractAddress string
	IsConfirmed     bool
}
