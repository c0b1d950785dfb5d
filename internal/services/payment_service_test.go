package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/tier"
)

// MockTransactionStore is a mock implementation of services.TransactionStore.
type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) GetTransactionByProviderID(ctx context.Context, providerPaymentID string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) UpdateTransactionByProviderID(ctx context.Context, providerPaymentID string, fields map[string]any) error {
	args := m.Called(ctx, providerPaymentID, fields)
	return args.Error(0)
}

func (m *MockTransactionStore) AppendReconciliationLog(ctx context.Context, entry *models.ReconciliationLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockTransactionStore) ApplyPremium(ctx context.Context, adID uuid.UUID, tierLabel string, expiresAt *time.Time) (*models.Ad, error) {
	args := m.Called(ctx, adID, tierLabel, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ad), args.Error(1)
}

// MockPaymentGateway is a mock implementation of services.PaymentGateway.
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) VerifyPayment(ctx context.Context, providerPaymentID string) (*services.VerificationResult, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerificationResult), args.Error(1)
}

var reconcileBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingTxn() *models.PaymentTransaction {
	adID := uuid.New()
	userID := uuid.New()
	return &models.PaymentTransaction{
		UserID:            &userID,
		AdID:              &adID,
		Tier:              tier.Premium7d,
		Status:            models.TransactionStatusPending,
		Amount:            25000,
		Currency:          "UZS",
		ExpiresAt:         reconcileBase.Add(15 * time.Minute),
		PaymentMethod:     models.PaymentMethodGateway,
		ProviderPaymentID: "BZ-test-1",
		ProviderStatus:    "pending",
	}
}

func newTestPaymentService(store *MockTransactionStore, gateway *MockPaymentGateway, hub *realtime.Hub, clk clock.Clock) *services.PaymentService {
	if hub == nil {
		hub = realtime.NewHub()
	}
	if clk == nil {
		clk = clock.NewFake(reconcileBase)
	}
	return services.NewPaymentService(store, gateway, hub, clk)
}

func TestReconcile_SameGatewayStatusIsNoop(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	txn := pendingTxn()
	updated, err := svc.Reconcile(context.Background(), txn, "pending", nil, models.ReconcileSourceManual)

	require.NoError(t, err)
	assert.Same(t, txn, updated)
	store.AssertExpectations(t)
}

func TestReconcile_PendingToCompleted(t *testing.T) {
	store := new(MockTransactionStore)
	hub := realtime.NewHub()
	svc := newTestPaymentService(store, new(MockPaymentGateway), hub, nil)

	sub := hub.Subscribe(realtime.TableTransactions)
	defer sub.Unsubscribe()

	txn := pendingTxn()
	raw := []byte(`{"status":"completed"}`)

	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.MatchedBy(func(fields map[string]any) bool {
		return fields["status"] == models.TransactionStatusCompleted &&
			fields["provider_status"] == "completed" &&
			fields["completed_at"] != nil
	})).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.MatchedBy(func(entry *models.ReconciliationLog) bool {
		return entry.Changed &&
			entry.OldStatus == models.TransactionStatusPending &&
			entry.NewStatus == models.TransactionStatusCompleted &&
			entry.Source == models.ReconcileSourceManual
	})).Return(nil)

	wantExpiry := reconcileBase.Add(7 * 24 * time.Hour)
	store.On("ApplyPremium", mock.Anything, *txn.AdID, tier.Premium7d, &wantExpiry).
		Return(&models.Ad{AdType: tier.Premium7d, PremiumExpiresAt: &wantExpiry}, nil)

	updated, err := svc.Reconcile(context.Background(), txn, "completed", raw, models.ReconcileSourceManual)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
	assert.Equal(t, "completed", updated.ProviderStatus)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, reconcileBase, *updated.CompletedAt)
	assert.Equal(t, raw, []byte(updated.RawPayload))

	// The caller's copy is untouched; only the returned record advances.
	assert.Equal(t, models.TransactionStatusPending, txn.Status)

	select {
	case evt := <-sub.C:
		assert.Equal(t, realtime.EventUpdate, evt.Type)
		pushed := evt.New.(models.PaymentTransaction)
		assert.Equal(t, models.TransactionStatusCompleted, pushed.Status)
	default:
		t.Fatal("expected a transaction update on the change feed")
	}

	store.AssertExpectations(t)
}

func TestReconcile_TerminalStatusNeverRegresses(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	settled := reconcileBase.Add(-time.Hour)
	txn := pendingTxn()
	txn.Status = models.TransactionStatusCompleted
	txn.ProviderStatus = "completed"
	txn.CompletedAt = &settled

	// A late, stale gateway read only refreshes the provider cache.
	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.MatchedBy(func(fields map[string]any) bool {
		_, hasStatus := fields["status"]
		return !hasStatus && fields["provider_status"] == "pending"
	})).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.MatchedBy(func(entry *models.ReconciliationLog) bool {
		return !entry.Changed
	})).Return(nil)

	updated, err := svc.Reconcile(context.Background(), txn, "pending", nil, models.ReconcileSourcePoll)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
	assert.Equal(t, &settled, updated.CompletedAt)
	store.AssertExpectations(t)
}

func TestReconcile_UnknownGatewayStatusRefreshesCacheOnly(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	txn := pendingTxn()

	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.MatchedBy(func(fields map[string]any) bool {
		_, hasStatus := fields["status"]
		return !hasStatus && fields["provider_status"] == "processing"
	})).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.Reconcile(context.Background(), txn, "processing", nil, models.ReconcileSourcePoll)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, updated.Status)
	assert.Equal(t, "processing", updated.ProviderStatus)
	store.AssertExpectations(t)
}

func TestReconcile_AuditFailureDoesNotFailReconcile(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	txn := pendingTxn()

	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.Anything).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.Anything).Return(errors.New("audit table unavailable"))

	updated, err := svc.Reconcile(context.Background(), txn, "failed", nil, models.ReconcileSourceWebhook)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, updated.Status)
	store.AssertExpectations(t)
}

func TestReconcile_UpdateErrorPropagates(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	txn := pendingTxn()
	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.Anything).
		Return(errors.New("connection reset"))

	updated, err := svc.Reconcile(context.Background(), txn, "completed", nil, models.ReconcileSourceWebhook)

	require.Error(t, err)
	assert.Nil(t, updated)
	store.AssertNotCalled(t, "AppendReconciliationLog", mock.Anything, mock.Anything)
}

func TestReconcileByProviderID_NotFound(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	store.On("GetTransactionByProviderID", mock.Anything, "BZ-missing").
		Return(nil, services.ErrTransactionNotFound)

	_, err := svc.ReconcileByProviderID(context.Background(), "BZ-missing", "completed", nil)
	assert.ErrorIs(t, err, services.ErrTransactionNotFound)
}

func TestVerifyAndReconcile_SkipsTerminalTransactions(t *testing.T) {
	store := new(MockTransactionStore)
	gateway := new(MockPaymentGateway)
	svc := newTestPaymentService(store, gateway, nil, nil)

	txn := pendingTxn()
	txn.Status = models.TransactionStatusFailed

	got := svc.VerifyAndReconcile(context.Background(), txn, models.ReconcileSourceManual)

	assert.Same(t, txn, got)
	gateway.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestVerifyAndReconcile_SkipsFreeTransactions(t *testing.T) {
	store := new(MockTransactionStore)
	gateway := new(MockPaymentGateway)
	svc := newTestPaymentService(store, gateway, nil, nil)

	txn := pendingTxn()
	txn.PaymentMethod = models.PaymentMethodFree
	txn.ProviderPaymentID = ""

	got := svc.VerifyAndReconcile(context.Background(), txn, models.ReconcileSourceManual)

	assert.Same(t, txn, got)
	gateway.AssertExpectations(t)
}

func TestVerifyAndReconcile_GatewayErrorKeepsPending(t *testing.T) {
	store := new(MockTransactionStore)
	gateway := new(MockPaymentGateway)
	svc := newTestPaymentService(store, gateway, nil, nil)

	txn := pendingTxn()
	gateway.On("VerifyPayment", mock.Anything, txn.ProviderPaymentID).
		Return(nil, errors.New("gateway timeout"))

	got := svc.VerifyAndReconcile(context.Background(), txn, models.ReconcileSourceManual)

	assert.Same(t, txn, got)
	assert.Equal(t, models.TransactionStatusPending, got.Status)
	store.AssertExpectations(t)
}

func TestVerifyAndReconcile_ExpiresOverdueCheckout(t *testing.T) {
	store := new(MockTransactionStore)
	gateway := new(MockPaymentGateway)
	clk := clock.NewFake(reconcileBase)
	svc := newTestPaymentService(store, gateway, nil, clk)

	txn := pendingTxn()
	clk.Set(txn.ExpiresAt.Add(time.Second))

	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.MatchedBy(func(fields map[string]any) bool {
		return fields["status"] == models.TransactionStatusExpired
	})).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.MatchedBy(func(entry *models.ReconciliationLog) bool {
		return entry.NewStatus == models.TransactionStatusExpired && entry.Source == models.ReconcileSourcePoll
	})).Return(nil)

	got := svc.VerifyAndReconcile(context.Background(), txn, models.ReconcileSourceManual)

	assert.Equal(t, models.TransactionStatusExpired, got.Status)
	// The gateway is never consulted for a lapsed checkout.
	gateway.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestVerifyAndReconcile_FullVerifyFlow(t *testing.T) {
	store := new(MockTransactionStore)
	gateway := new(MockPaymentGateway)
	svc := newTestPaymentService(store, gateway, nil, nil)

	txn := pendingTxn()
	raw := []byte(`{"status":"completed","amount":25000}`)

	gateway.On("VerifyPayment", mock.Anything, txn.ProviderPaymentID).
		Return(&services.VerificationResult{Status: "completed", Raw: raw}, nil)
	store.On("UpdateTransactionByProviderID", mock.Anything, txn.ProviderPaymentID, mock.Anything).Return(nil)
	store.On("AppendReconciliationLog", mock.Anything, mock.Anything).Return(nil)
	store.On("ApplyPremium", mock.Anything, *txn.AdID, tier.Premium7d, mock.Anything).
		Return(&models.Ad{}, nil)

	got := svc.VerifyAndReconcile(context.Background(), txn, models.ReconcileSourceManual)

	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	gateway.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestActivatePremium_SkipsStandardTier(t *testing.T) {
	store := new(MockTransactionStore)
	svc := newTestPaymentService(store, new(MockPaymentGateway), nil, nil)

	txn := pendingTxn()
	txn.Tier = tier.Standard
	svc.ActivatePremium(context.Background(), txn)

	txn = pendingTxn()
	txn.AdID = nil
	svc.ActivatePremium(context.Background(), txn)

	store.AssertExpectations(t)
}
