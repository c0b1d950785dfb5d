package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
)

// Referrers earn this share of every completed payment made by a user they
// invited.
const referralCreditPercent = 5

// ReferralService consumes the transaction change feed and credits referrers
// when a referred user's payment completes. The unique transaction_id index
// on referral_credits absorbs duplicate or replayed deliveries, so the
// handler is idempotent without coordinating with the reconciler.
type ReferralService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewReferralService constructs a ReferralService.
func NewReferralService(db *gorm.DB, hub *realtime.Hub) *ReferralService {
	return &ReferralService{db: db, hub: hub}
}

// Run subscribes to transaction mutations until the context is cancelled.
func (s *ReferralService) Run(ctx context.Context) {
	sub := s.hub.Subscribe(realtime.TableTransactions)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			s.handle(ctx, evt)
		}
	}
}

func (s *ReferralService) handle(ctx context.Context, evt realtime.Event) {
	txn, ok := evt.New.(models.PaymentTransaction)
	if !ok {
		return
	}
	if txn.Status != models.TransactionStatusCompleted || txn.UserID == nil || txn.Amount <= 0 {
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", *txn.UserID).Error; err != nil {
		log.Printf("[Referral] load user %s failed: %v", *txn.UserID, err)
		return
	}
	if user.ReferredBy == nil {
		return
	}

	credit := models.ReferralCredit{
		UserID:        *user.ReferredBy,
		SourceUserID:  user.ID,
		TransactionID: txn.ID,
		Amount:        txn.Amount * referralCreditPercent / 100,
		Currency:      txn.Currency,
		Reason:        "referred purchase",
	}
	if err := s.db.WithContext(ctx).Create(&credit).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Duplicate delivery; already credited.
			return
		}
		log.Printf("[Referral] credit write failed for transaction %s: %v", txn.ID, err)
		return
	}

	log.Printf("[Referral] credited %d %s to %s for transaction %s",
		credit.Amount, credit.Currency, credit.UserID, txn.ID)
}
