package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/tier"
)

// ErrTransactionNotFound marks an absent record, a valid terminal condition
// that callers must not conflate with a retryable fetch failure.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionStore is the record-store surface the payment service needs.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetTransactionByProviderID(ctx context.Context, providerPaymentID string) (*models.PaymentTransaction, error)
	UpdateTransactionByProviderID(ctx context.Context, providerPaymentID string, fields map[string]any) error
	AppendReconciliationLog(ctx context.Context, entry *models.ReconciliationLog) error
	ApplyPremium(ctx context.Context, adID uuid.UUID, tierLabel string, expiresAt *time.Time) (*models.Ad, error)
}

// PaymentService owns the transaction fetch/verify/reconcile cycle. It is the
// only local writer of transaction records; the store's own concurrency
// control arbitrates write-write races.
type PaymentService struct {
	store   TransactionStore
	gateway PaymentGateway
	hub     *realtime.Hub
	clk     clock.Clock
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(store TransactionStore, gateway PaymentGateway, hub *realtime.Hub, clk clock.Clock) *PaymentService {
	return &PaymentService{store: store, gateway: gateway, hub: hub, clk: clk}
}

// GetTransaction loads one transaction by primary key.
func (s *PaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Reconcile compares the freshly fetched gateway status against the cached
// one and persists an update when they diverge. Only gateway-confirmed
// terminal states cause a local terminal transition; any other gateway value
// refreshes the provider_status cache and nothing else. Applying the same
// gateway status twice is a no-op the second time.
func (s *PaymentService) Reconcile(ctx context.Context, txn *models.PaymentTransaction, gatewayStatus string, rawPayload []byte, source string) (*models.PaymentTransaction, error) {
	if gatewayStatus == txn.ProviderStatus {
		return txn, nil
	}

	updates := map[string]any{"provider_status": gatewayStatus}
	if len(rawPayload) > 0 {
		updates["raw_payload"] = rawPayload
	}

	newStatus := txn.Status
	var completedAt *time.Time
	if !txn.IsTerminal() {
		switch gatewayStatus {
		case GatewayStatusCompleted:
			newStatus = models.TransactionStatusCompleted
			now := s.clk.Now()
			completedAt = &now
			updates["status"] = newStatus
			updates["completed_at"] = completedAt
		case GatewayStatusFailed:
			newStatus = models.TransactionStatusFailed
			updates["status"] = newStatus
		}
	}

	// Single atomic write keyed by the provider-side identifier so webhook
	// callers that only know that id can still reconcile.
	if err := s.store.UpdateTransactionByProviderID(ctx, txn.ProviderPaymentID, updates); err != nil {
		return nil, err
	}

	updated := *txn
	updated.ProviderStatus = gatewayStatus
	updated.Status = newStatus
	if completedAt != nil {
		updated.CompletedAt = completedAt
	}
	if len(rawPayload) > 0 {
		updated.RawPayload = rawPayload
	}

	// Audit write is best-effort: a failure here must not roll back the
	// status update above.
	if err := s.store.AppendReconciliationLog(ctx, &models.ReconciliationLog{
		ProviderPaymentID: txn.ProviderPaymentID,
		OldStatus:         txn.Status,
		NewStatus:         newStatus,
		OldProviderStatus: txn.ProviderStatus,
		NewProviderStatus: gatewayStatus,
		Source:            source,
		Changed:           newStatus != txn.Status,
	}); err != nil {
		log.Printf("[Reconciler] audit log write failed for %s: %v", txn.ProviderPaymentID, err)
	}

	if txn.Status == models.TransactionStatusPending && newStatus == models.TransactionStatusCompleted {
		s.ActivatePremium(ctx, &updated)
	}

	s.hub.Publish(realtime.Event{
		Type:  realtime.EventUpdate,
		Table: realtime.TableTransactions,
		New:   updated,
		Old:   *txn,
	})

	return &updated, nil
}

// ReconcileByProviderID is the webhook entry point: the caller knows only the
// provider-side identifier.
func (s *PaymentService) ReconcileByProviderID(ctx context.Context, providerPaymentID, gatewayStatus string, rawPayload []byte) (*models.PaymentTransaction, error) {
	txn, err := s.store.GetTransactionByProviderID(ctx, providerPaymentID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, txn, gatewayStatus, rawPayload, models.ReconcileSourceWebhook)
}

// VerifyAndReconcile asks the gateway for the authoritative status of a
// pending provider-backed transaction and reconciles against it. Non-pending
// or non-provider transactions are a no-op by contract. Gateway failures are
// logged and swallowed: the transaction simply stays pending until the next
// trigger.
func (s *PaymentService) VerifyAndReconcile(ctx context.Context, txn *models.PaymentTransaction, source string) *models.PaymentTransaction {
	if txn.Status != models.TransactionStatusPending || !txn.IsProviderBacked() {
		return txn
	}

	if expired := s.expireIfOverdue(ctx, txn); expired != nil {
		return expired
	}

	res, err := s.gateway.VerifyPayment(ctx, txn.ProviderPaymentID)
	if err != nil {
		log.Printf("[Gateway] verification failed for %s: %v", txn.ProviderPaymentID, err)
		return txn
	}

	updated, err := s.Reconcile(ctx, txn, res.Status, res.Raw, source)
	if err != nil {
		log.Printf("[Reconciler] reconcile failed for %s: %v", txn.ProviderPaymentID, err)
		return txn
	}
	return updated
}

// expireIfOverdue moves a pending transaction whose checkout window has
// lapsed into the expired state. Returns nil when nothing changed.
func (s *PaymentService) expireIfOverdue(ctx context.Context, txn *models.PaymentTransaction) *models.PaymentTransaction {
	now := s.clk.Now()
	if txn.ExpiresAt.IsZero() || now.Before(txn.ExpiresAt) {
		return nil
	}

	updates := map[string]any{"status": models.TransactionStatusExpired}
	if err := s.store.UpdateTransactionByProviderID(ctx, txn.ProviderPaymentID, updates); err != nil {
		log.Printf("[Reconciler] expire failed for %s: %v", txn.ProviderPaymentID, err)
		return nil
	}

	updated := *txn
	updated.Status = models.TransactionStatusExpired

	if err := s.store.AppendReconciliationLog(ctx, &models.ReconciliationLog{
		ProviderPaymentID: txn.ProviderPaymentID,
		OldStatus:         txn.Status,
		NewStatus:         updated.Status,
		OldProviderStatus: txn.ProviderStatus,
		NewProviderStatus: txn.ProviderStatus,
		Source:            models.ReconcileSourcePoll,
		Changed:           true,
	}); err != nil {
		log.Printf("[Reconciler] audit log write failed for %s: %v", txn.ProviderPaymentID, err)
	}

	s.hub.Publish(realtime.Event{
		Type:  realtime.EventUpdate,
		Table: realtime.TableTransactions,
		New:   updated,
		Old:   *txn,
	})
	return &updated
}

// ActivatePremium applies the purchased tier to the listing once the payment
// has settled. Activation failures are logged, not propagated: the payment
// itself has already completed.
func (s *PaymentService) ActivatePremium(ctx context.Context, txn *models.PaymentTransaction) {
	if txn.AdID == nil || !tier.IsPremium(txn.Tier) {
		return
	}

	expiresAt := tier.ExpiresAt(txn.Tier, s.clk.Now())
	ad, err := s.store.ApplyPremium(ctx, *txn.AdID, txn.Tier, expiresAt)
	if err != nil {
		log.Printf("[Reconciler] premium activation failed for ad %s: %v", *txn.AdID, err)
		return
	}

	s.hub.Publish(realtime.Event{
		Type:  realtime.EventUpdate,
		Table: realtime.TableAds,
		New:   *ad,
	})
}
