package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups messages between a buyer and the ad owner. One
// conversation exists per (ad, buyer) pair.
type Conversation struct {
	BaseModel
	AdID     uuid.UUID `gorm:"type:uuid;index:idx_conversation_ad_buyer,unique" json:"ad_id"`
	Ad       *Ad       `json:"ad,omitempty"`
	BuyerID  uuid.UUID `gorm:"type:uuid;index:idx_conversation_ad_buyer,unique" json:"buyer_id"`
	SellerID uuid.UUID `gorm:"type:uuid;index" json:"seller_id"`
	Messages []Message `json:"messages,omitempty"`
}

// Message is a single chat message inside a conversation.
type Message struct {
	BaseModel
	ConversationID uuid.UUID  `gorm:"type:uuid;index" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;index" json:"sender_id"`
	Body           string     `json:"body"`
	ReadAt         *time.Time `json:"read_at"`
}
