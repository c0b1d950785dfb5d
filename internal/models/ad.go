package models

import (
	"time"

	"github.com/google/uuid"
)

// Moderation statuses for a listing. Independent of the premium tier axis.
const (
	AdStatusPending  = "pending"
	AdStatusApproved = "approved"
	AdStatusRejected = "rejected"
	AdStatusDeleted  = "deleted"
)

// Ad is a classified listing. The moderation status and the premium tier are
// separate axes: the expiration sweeper only ever touches ad_type and
// premium_expires_at, never status.
type Ad struct {
	BaseModel
	UserID           uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	User             *User      `json:"user,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Price            int64      `json:"price"`
	Currency         string     `json:"currency"`
	Category         string     `gorm:"index" json:"category"`
	City             string     `gorm:"index" json:"city"`
	ContactPhone     string     `json:"contact_phone"`
	Images           []byte     `gorm:"type:jsonb" json:"images"`
	Status           string     `gorm:"index;default:pending" json:"status"`
	AdType           string     `gorm:"index;default:standard" json:"ad_type"`
	PremiumExpiresAt *time.Time `gorm:"index" json:"premium_expires_at"`
	Views            int64      `json:"views"`
	RejectionReason  string     `json:"rejection_reason"`
}
