package models

import (
	"github.com/google/uuid"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered marketplace member.
type User struct {
	BaseModel
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `gorm:"uniqueIndex" json:"phone"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	Role         string     `gorm:"default:user" json:"role"`
	ReferralCode string     `gorm:"uniqueIndex" json:"referral_code"`
	ReferredBy   *uuid.UUID `gorm:"type:uuid;index" json:"referred_by"`
	Ads          []Ad       `json:"ads,omitempty"`
}
