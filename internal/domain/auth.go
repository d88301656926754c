package domain

import "time"

type AuthService interface {
	ValidateToken(token string) (*SupabaseUser, error)
	StartDemo(deviceID string) *Account
	ParseDemo(id, deviceID string) (*Account, error)
}

// Clock supplies the current time for day-boundary calculations.
type Clock interface {
	Now() time.Time
}
