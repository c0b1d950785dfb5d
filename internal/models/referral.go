package models

import (
	"github.com/google/uuid"
)

// ReferralCredit records a bonus earned by a referrer when a user they
// invited completes a paid transaction. The unique transaction_id index makes
// crediting idempotent under duplicate change-feed delivery.
type ReferralCredit struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	SourceUserID  uuid.UUID `gorm:"type:uuid" json:"source_user_id"`
	TransactionID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Reason        string    `json:"reason"`
}
