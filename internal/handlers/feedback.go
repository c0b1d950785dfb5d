package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/utils"
)

// FeedbackHandler manages ratings and reports. Both are user-initiated
// actions, so validation failures propagate synchronously to the caller.
type FeedbackHandler struct {
	db       *gorm.DB
	telegram *services.TelegramService
}

// NewFeedbackHandler constructs a FeedbackHandler.
func NewFeedbackHandler(db *gorm.DB, telegram *services.TelegramService) *FeedbackHandler {
	return &FeedbackHandler{db: db, telegram: telegram}
}

type createRatingRequest struct {
	AdID    string `json:"ad_id" validate:"required,uuid"`
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// CreateRating submits a seller rating tied to one ad.
func (h *FeedbackHandler) CreateRating(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	adID := uuid.MustParse(req.AdID)
	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND status <> ?", adID, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	if ad.UserID == userID {
		return fiber.NewError(fiber.StatusBadRequest, "cannot rate your own ad")
	}

	rating := models.Rating{
		RaterID:     userID,
		AdID:        ad.ID,
		RatedUserID: ad.UserID,
		Score:       req.Score,
		Comment:     req.Comment,
	}
	if err := h.db.Create(&rating).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "you already rated this ad")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": rating})
}

// ListUserRatings returns ratings received by a user plus the average score.
func (h *FeedbackHandler) ListUserRatings(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Rating{}).Where("rated_user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var average float64
	if err := query.Select("COALESCE(AVG(score), 0)").Scan(&average).Error; err != nil {
		return err
	}

	var ratings []models.Rating
	if err := h.db.
		Where("rated_user_id = ?", userID).
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&ratings).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"ratings": ratings,
			"average": average,
		},
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type createReportRequest struct {
	AdID    string `json:"ad_id" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required"`
	Details string `json:"details" validate:"max=2000"`
}

// CreateReport flags a listing for moderator review.
func (h *FeedbackHandler) CreateReport(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createReportRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	adID := uuid.MustParse(req.AdID)
	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND status <> ?", adID, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	report := models.Report{
		AdID:       ad.ID,
		ReporterID: userID,
		Reason:     req.Reason,
		Details:    req.Details,
		Status:     models.ReportStatusOpen,
	}
	if err := h.db.Create(&report).Error; err != nil {
		return err
	}

	if h.telegram != nil {
		go func() {
			if err := h.telegram.NotifyReport(ad.Title, report.Reason); err != nil {
				log.Printf("[Feedback] Telegram report notification failed: %v", err)
			}
		}()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": report})
}
