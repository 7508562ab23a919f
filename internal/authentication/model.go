package authentication

import (
	"time"
)

// TokenStatus is the lifecycle state of a single refresh token.
type TokenStatus string

const (
	StatusActive  TokenStatus = "active"
	StatusRotated TokenStatus = "rotated"
	StatusRevoked TokenStatus = "revoked"
)

// RefreshTokenRecord is one issued refresh token. ID is the keyed hash of the
// secret handed to the client; FamilyID is the ID of the login-time root of
// the rotation chain.
type RefreshTokenRecord struct {
	ID           string      `gorm:"primaryKey;size:64"`
	PersonID     uint        `gorm:"index;not null"`
	FamilyID     string      `gorm:"index;size:64;not null"`
	Status       TokenStatus `gorm:"type:text;not null;default:'active'"`
	ReplacedByID *string     `gorm:"size:64"`
	IssuedAt     time.Time   `gorm:"not null"`
	ExpiresAt    time.Time   `gorm:"index;not null"`
	RevokedAt    *time.Time
}

func (r *RefreshTokenRecord) IsActive() bool {
	return r.Status == StatusActive
}

// IsExpired reports whether now is at or past the expiry instant.
func (r *RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
