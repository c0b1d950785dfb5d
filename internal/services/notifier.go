package services

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
)

// NotifierService turns transaction mutations into admin notifications. It
// consumes the change feed, so the same policy fires whether the transition
// came from a manual verify, a poll, or the gateway webhook. It never
// re-triggers the reconciler: the write already happened upstream.
type NotifierService struct {
	db       *gorm.DB
	hub      *realtime.Hub
	telegram *TelegramService

	mu       sync.Mutex
	notified map[uuid.UUID]struct{}
}

// NewNotifierService constructs a NotifierService.
func NewNotifierService(db *gorm.DB, hub *realtime.Hub, telegram *TelegramService) *NotifierService {
	return &NotifierService{
		db:       db,
		hub:      hub,
		telegram: telegram,
		notified: make(map[uuid.UUID]struct{}),
	}
}

// Run subscribes to transaction mutations until the context is cancelled.
func (s *NotifierService) Run(ctx context.Context) {
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

func (s *NotifierService) handle(ctx context.Context, evt realtime.Event) {
	txn, ok := evt.New.(models.PaymentTransaction)
	if !ok {
		return
	}
	if txn.Status != models.TransactionStatusCompleted {
		return
	}

	// Delivery may be duplicated; notify once per transaction.
	s.mu.Lock()
	if _, seen := s.notified[txn.ID]; seen {
		s.mu.Unlock()
		return
	}
	s.notified[txn.ID] = struct{}{}
	s.mu.Unlock()

	adTitle := ""
	if txn.AdID != nil {
		var ad models.Ad
		if err := s.db.WithContext(ctx).First(&ad, "id = ?", *txn.AdID).Error; err == nil {
			adTitle = ad.Title
		}
	}

	if err := s.telegram.NotifyPaymentSuccess(PaymentSuccessNotification{
		TransactionID: txn.ID.String(),
		AdTitle:       adTitle,
		Tier:          txn.Tier,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
	}); err != nil {
		log.Printf("[Notifier] payment success notification failed: %v", err)
	}
}
