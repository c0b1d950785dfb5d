package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. pending is the only non-terminal state: the legal
// transitions are pending -> completed|failed|expired and nothing else.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusExpired   = "expired"
)

// Payment methods.
const (
	PaymentMethodGateway = "gateway"
	PaymentMethodFree    = "free"
)

// PaymentTransaction tracks a premium tier purchase. Records are mutated only
// by the reconciler (keyed by provider_payment_id) and are never deleted.
type PaymentTransaction struct {
	BaseModel
	UserID            *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	AdID              *uuid.UUID `gorm:"type:uuid;index" json:"ad_id"`
	Tier              string     `json:"tier"`
	Status            string     `gorm:"index;default:pending" json:"status"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	ExpiresAt         time.Time  `json:"expires_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	PaymentMethod     string     `json:"payment_method"`
	ProviderPaymentID string     `gorm:"column:provider_payment_id;index" json:"provider_payment_id"`
	ProviderStatus    string     `json:"provider_status"`
	RawPayload        []byte     `gorm:"type:jsonb" json:"raw_payload"`

	// Advisory fraud metadata, display-only for this subsystem.
	SecurityScore     int    `json:"security_score"`
	ProcessingLock    bool   `json:"processing_lock"`
	LockedBy          string `json:"locked_by"`
	ClientFingerprint string `json:"client_fingerprint"`
}

// IsTerminal reports whether the transaction has reached a final status.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusExpired
}

// IsProviderBacked reports whether the transaction settles through the
// external gateway rather than the free zero-amount path.
func (t *PaymentTransaction) IsProviderBacked() bool {
	return t.PaymentMethod == PaymentMethodGateway && t.ProviderPaymentID != ""
}
