package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/tier"
	"github.com/example/bozor/internal/utils"
)

// AdHandler manages listing endpoints.
type AdHandler struct {
	db       *gorm.DB
	hub      *realtime.Hub
	clk      clock.Clock
	telegram *services.TelegramService
}

// NewAdHandler constructs an AdHandler.
func NewAdHandler(db *gorm.DB, hub *realtime.Hub, clk clock.Clock, telegram *services.TelegramService) *AdHandler {
	return &AdHandler{db: db, hub: hub, clk: clk, telegram: telegram}
}

// adResponse decorates a listing with its derived premium badge. A lapsed
// premium listing is rendered as standard tier immediately, without waiting
// for the sweeper to persist the downgrade.
type adResponse struct {
	models.Ad
	Premium tier.Display `json:"premium"`
}

func (h *AdHandler) present(ad models.Ad) adResponse {
	display := tier.Present(ad.AdType, ad.PremiumExpiresAt, h.clk.Now())
	if display.State == tier.StateExpired {
		ad.AdType = tier.Standard
		ad.PremiumExpiresAt = nil
		display = tier.Display{State: tier.StateNone}
	}
	return adResponse{Ad: ad, Premium: display}
}

func (h *AdHandler) presentAll(ads []models.Ad) []adResponse {
	out := make([]adResponse, len(ads))
	for i, ad := range ads {
		out[i] = h.present(ad)
	}
	return out
}

type createAdRequest struct {
	Title        string          `json:"title" validate:"required,min=3,max=120"`
	Description  string          `json:"description" validate:"required"`
	Price        int64           `json:"price" validate:"gte=0"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category" validate:"required"`
	City         string          `json:"city" validate:"required"`
	ContactPhone string          `json:"contact_phone"`
	Images       json.RawMessage `json:"images"`
}

// CreateAd submits a new listing into the moderation queue.
func (h *AdHandler) CreateAd(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createAdRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ad := models.Ad{
		UserID:       userID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		Category:     req.Category,
		City:         req.City,
		ContactPhone: req.ContactPhone,
		Images:       req.Images,
		Status:       models.AdStatusPending,
		AdType:       tier.Standard,
	}
	if ad.Currency == "" {
		ad.Currency = "UZS"
	}

	if err := h.db.Create(&ad).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventInsert,
		Table: realtime.TableAds,
		New:   ad,
	})

	if h.telegram != nil {
		var user models.User
		userName := ""
		if err := h.db.Select("id, display_name").First(&user, "id = ?", userID).Error; err == nil {
			userName = user.DisplayName
		}
		go func() {
			if err := h.telegram.NotifyAdSubmitted(services.AdSubmittedNotification{
				AdID:     ad.ID.String(),
				Title:    ad.Title,
				Category: ad.Category,
				City:     ad.City,
				Price:    ad.Price,
				Currency: ad.Currency,
				UserName: userName,
			}); err != nil {
				log.Printf("[Ads] Telegram moderation notification failed: %v", err)
			}
		}()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    h.present(ad),
	})
}

// ListAds returns approved listings, premium first, with optional filters.
func (h *AdHandler) ListAds(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	now := h.clk.Now()

	query := h.db.Model(&models.Ad{}).Where("status = ?", models.AdStatusApproved)

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		query = query.Where("city = ?", city)
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where("title ILIKE ? OR description ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var ads []models.Ad
	if err := query.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN ad_type <> 'standard' AND premium_expires_at > ? THEN 0 ELSE 1 END, created_at DESC",
			Vars:               []interface{}{now},
			WithoutParentheses: true,
		}}).
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&ads).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.presentAll(ads),
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetAd returns one listing and bumps its view counter.
func (h *AdHandler) GetAd(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
	}

	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND status <> ?", id, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	if err := h.db.Model(&models.Ad{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		log.Printf("[Ads] view counter update failed for %s: %v", id, err)
	} else {
		ad.Views++
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.present(ad),
	})
}

// MyAds lists the authenticated user's own listings, any status.
func (h *AdHandler) MyAds(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Ad{}).Where("user_id = ? AND status <> ?", userID, models.AdStatusDeleted)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var ads []models.Ad
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&ads).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.presentAll(ads),
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type updateAdRequest struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	Price        *int64          `json:"price"`
	Category     *string         `json:"category"`
	City         *string         `json:"city"`
	ContactPhone *string         `json:"contact_phone"`
	Images       json.RawMessage `json:"images"`
}

// UpdateAd edits an owned listing. Edits send it back to the moderation
// queue; tier fields are never writable through this endpoint.
func (h *AdHandler) UpdateAd(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
	}

	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND user_id = ? AND status <> ?", id, userID, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	var req updateAdRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	old := ad
	if req.Title != nil {
		ad.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		ad.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid price")
		}
		ad.Price = *req.Price
	}
	if req.Category != nil {
		ad.Category = *req.Category
	}
	if req.City != nil {
		ad.City = *req.City
	}
	if req.ContactPhone != nil {
		ad.ContactPhone = *req.ContactPhone
	}
	if len(req.Images) > 0 {
		ad.Images = req.Images
	}
	ad.Status = models.AdStatusPending

	if err := h.db.Save(&ad).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventUpdate,
		Table: realtime.TableAds,
		New:   ad,
		Old:   old,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.present(ad),
	})
}

// DeleteAd soft-deletes an owned listing.
func (h *AdHandler) DeleteAd(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
	}

	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND user_id = ? AND status <> ?", id, userID, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	old := ad
	ad.Status = models.AdStatusDeleted
	if err := h.db.Model(&models.Ad{}).
		Where("id = ?", id).
		Update("status", models.AdStatusDeleted).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventDelete,
		Table: realtime.TableAds,
		New:   ad,
		Old:   old,
	})

	return c.JSON(fiber.Map{"success": true})
}
