package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/models"
)

// ReferralHandler exposes the user's referral code and earned credits.
type ReferralHandler struct {
	db *gorm.DB
}

// NewReferralHandler constructs a ReferralHandler.
func NewReferralHandler(db *gorm.DB) *ReferralHandler {
	return &ReferralHandler{db: db}
}

// GetReferrals returns the caller's referral code, invited users count and
// credit history.
func (h *ReferralHandler) GetReferrals(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.Select("id, referral_code").First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	var invited int64
	if err := h.db.Model(&models.User{}).Where("referred_by = ?", userID).Count(&invited).Error; err != nil {
		return err
	}

	var credits []models.ReferralCredit
	if err := h.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&credits).Error; err != nil {
		return err
	}

	var totalEarned int64
	for _, credit := range credits {
		totalEarned += credit.Amount
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"referral_code": user.ReferralCode,
			"invited_users": invited,
			"total_earned":  totalEarned,
			"credits":       credits,
		},
	})
}
