package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db      *gorm.DB
	hub     *realtime.Hub
	sweeper *services.SweeperService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, hub *realtime.Hub, sweeper *services.SweeperService) *AdminHandler {
	return &AdminHandler{db: db, hub: hub, sweeper: sweeper}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var adCounts []statusCount
	if err := h.db.Model(&models.Ad{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&adCounts).Error; err != nil {
		return err
	}

	adsByStatus := make(map[string]int64)
	for _, sc := range adCounts {
		adsByStatus[sc.Status] = sc.Count
	}

	var totalRevenue int64
	if err := h.db.Model(&models.PaymentTransaction{}).
		Where("status = ?", models.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	var todayRevenue int64
	if err := h.db.Model(&models.PaymentTransaction{}).
		Where("status = ? AND completed_at::date = CURRENT_DATE", models.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	var activePremium int64
	if err := h.db.Model(&models.Ad{}).
		Where("ad_type <> 'standard' AND premium_expires_at > NOW()").
		Count(&activePremium).Error; err != nil {
		return err
	}

	var openReports int64
	if err := h.db.Model(&models.Report{}).
		Where("status = ?", models.ReportStatusOpen).
		Count(&openReports).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":    totalUsers,
			"ads_by_status":  adsByStatus,
			"total_revenue":  totalRevenue,
			"today_revenue":  todayRevenue,
			"active_premium": activePremium,
			"open_reports":   openReports,
		},
	})
}

// ModerationQueue lists pending listings oldest first.
func (h *AdminHandler) ModerationQueue(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Ad{}).Where("status = ?", models.AdStatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var ads []models.Ad
	if err := query.Preload("User").
		Order("created_at asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&ads).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ads,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

func (h *AdminHandler) moderate(c *fiber.Ctx, status, reason string) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
	}

	var ad models.Ad
	if err := h.db.First(&ad, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	if ad.Status != models.AdStatusPending {
		return fiber.NewError(fiber.StatusConflict, "ad is not awaiting moderation")
	}

	old := ad
	ad.Status = status
	ad.RejectionReason = reason
	if err := h.db.Model(&models.Ad{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "rejection_reason": reason}).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventUpdate,
		Table: realtime.TableAds,
		New:   ad,
		Old:   old,
	})

	return c.JSON(fiber.Map{"success": true, "data": ad})
}

// ApproveAd publishes a pending listing.
func (h *AdminHandler) ApproveAd(c *fiber.Ctx) error {
	return h.moderate(c, models.AdStatusApproved, "")
}

type rejectAdRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RejectAd declines a pending listing with a reason.
func (h *AdminHandler) RejectAd(c *fiber.Ctx) error {
	var req rejectAdRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return h.moderate(c, models.AdStatusRejected, req.Reason)
}

// ListReports returns flagged listings for review.
func (h *AdminHandler) ListReports(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Report{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var reports []models.Report
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&reports).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reports,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ResolveReport closes a report.
func (h *AdminHandler) ResolveReport(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid report id")
	}

	res := h.db.Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportStatusOpen).
		Update("status", models.ReportStatusResolved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "open report not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

// TriggerSweep runs the expiration sweep on demand. Errors are surfaced as a
// non-fatal payload so the UI can toast them; the periodic sweep will retry.
func (h *AdminHandler) TriggerSweep(c *fiber.Ctx) error {
	converted, err := h.sweeper.Sweep(c.Context())
	if err != nil {
		return c.JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"converted": converted},
	})
}
