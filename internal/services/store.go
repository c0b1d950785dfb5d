package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/tier"
)

// GormStore is the Postgres-backed record store used by the payment service
// and the expiration sweeper.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetTransaction loads a transaction by primary key, distinguishing absent
// records from fetch failures.
func (s *GormStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("fetch transaction %s: %w", id, err)
	}
	return &txn, nil
}

// GetTransactionByProviderID loads a transaction by its provider-side
// correlation key.
func (s *GormStore) GetTransactionByProviderID(ctx context.Context, providerPaymentID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("fetch transaction by provider id %s: %w", providerPaymentID, err)
	}
	return &txn, nil
}

// UpdateTransactionByProviderID applies the given fields as one atomic write.
func (s *GormStore) UpdateTransactionByProviderID(ctx context.Context, providerPaymentID string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("provider_payment_id = ?", providerPaymentID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update transaction %s: %w", providerPaymentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// AppendReconciliationLog writes one audit entry.
func (s *GormStore) AppendReconciliationLog(ctx context.Context, entry *models.ReconciliationLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ApplyPremium sets the purchased tier on a listing and returns the updated
// record. Moderation status is untouched.
func (s *GormStore) ApplyPremium(ctx context.Context, adID uuid.UUID, tierLabel string, expiresAt *time.Time) (*models.Ad, error) {
	if err := s.db.WithContext(ctx).
		Model(&models.Ad{}).
		Where("id = ?", adID).
		Updates(map[string]any{
			"ad_type":            tierLabel,
			"premium_expires_at": expiresAt,
		}).Error; err != nil {
		return nil, fmt.Errorf("apply premium to ad %s: %w", adID, err)
	}

	var ad models.Ad
	if err := s.db.WithContext(ctx).First(&ad, "id = ?", adID).Error; err != nil {
		return nil, fmt.Errorf("reload ad %s: %w", adID, err)
	}
	return &ad, nil
}

// ListExpiredPremium returns premium listings whose expiry has lapsed.
func (s *GormStore) ListExpiredPremium(ctx context.Context, now time.Time) ([]models.Ad, error) {
	var ads []models.Ad
	if err := s.db.WithContext(ctx).
		Where("ad_type <> ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?", tier.Standard, now).
		Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("list expired premium ads: %w", err)
	}
	return ads, nil
}

// DowngradeAd moves one lapsed listing back to the standard tier. The
// ad_type predicate makes concurrent sweeps converge without locking: the
// update reports false when another sweep already downgraded the row.
func (s *GormStore) DowngradeAd(ctx context.Context, adID uuid.UUID, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ad{}).
		Where("id = ? AND ad_type <> ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?", adID, tier.Standard, now).
		Updates(map[string]any{
			"ad_type":            tier.Standard,
			"premium_expires_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("downgrade ad %s: %w", adID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
