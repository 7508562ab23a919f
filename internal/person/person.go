package person

import (
	"time"

	"gorm.io/gorm"
)

// Role represents the set of possible user roles.
// @Description user role type: "admin" or "user"
type Role string

const (
	// Admin has full access
	Admin Role = "admin"
	// User has limited access
	User Role = "user"
)

// Person represents a café account holder.
// swagger:model PersonResponse
// @Description person model
type Person struct {
	gorm.Model
	// Email address (unique)
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	// Password hash (hidden from JSON)
	Password string `json:"-" gorm:"not null"`
	// EmailConfirmed gates token issuance at login
	EmailConfirmed bool `json:"email_confirmed" gorm:"not null;default:false"`
	// LastSeen indicates last activity time
	LastSeen time.Time `json:"last_seen"`
	// Role of the person
	Role Role `json:"role" gorm:"type:text;default:'user'"`
}

// NewPerson initializes an unconfirmed Person with the default role.
func NewPerson(email, passwordHash string) *Person {
	return &Person{
		Email:    email,
		Password: passwordHash,
		LastSeen: time.Now().UTC(),
		Role:     User,
	}
}
