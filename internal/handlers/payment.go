package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/tier"
	"github.com/example/bozor/internal/utils"
)

// PaymentHandler manages premium checkout and reconciliation endpoints.
type PaymentHandler struct {
	db             *gorm.DB
	payments       *services.PaymentService
	gateway        *services.GatewayClient
	hub            *realtime.Hub
	clk            clock.Clock
	checkoutWindow time.Duration
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, gateway *services.GatewayClient, hub *realtime.Hub, clk clock.Clock, checkoutWindow time.Duration) *PaymentHandler {
	return &PaymentHandler{
		db:             db,
		payments:       payments,
		gateway:        gateway,
		hub:            hub,
		clk:            clk,
		checkoutWindow: checkoutWindow,
	}
}

// ListTiers exposes the purchasable tiers with their prices and lifespans.
func (h *PaymentHandler) ListTiers(c *fiber.Ctx) error {
	type tierInfo struct {
		Label         string `json:"label"`
		Price         int64  `json:"price"`
		Currency      string `json:"currency"`
		DurationHours int64  `json:"duration_hours"`
	}

	var out []tierInfo
	for _, label := range tier.All() {
		price, _ := tier.Price(label)
		info := tierInfo{Label: label, Price: price, Currency: "UZS"}
		if d, ok := tier.Duration(label); ok {
			info.DurationHours = int64(d.Hours())
		}
		out = append(out, info)
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

type checkoutRequest struct {
	AdID      string `json:"ad_id" validate:"required,uuid"`
	Tier      string `json:"tier" validate:"required"`
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// Checkout starts a premium tier purchase for an owned listing. Zero-priced
// tiers settle immediately on the free path; everything else goes through the
// hosted gateway checkout.
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if !tier.IsPremium(req.Tier) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown or non-premium tier")
	}
	price, _ := tier.Price(req.Tier)

	adID := uuid.MustParse(req.AdID)
	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND user_id = ? AND status <> ?", adID, userID, models.AdStatusDeleted).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	now := h.clk.Now()
	txn := models.PaymentTransaction{
		UserID:    &userID,
		AdID:      &ad.ID,
		Tier:      req.Tier,
		Amount:    price,
		Currency:  "UZS",
		ExpiresAt: now.Add(h.checkoutWindow),
	}

	if price == 0 {
		completedAt := now
		txn.PaymentMethod = models.PaymentMethodFree
		txn.Status = models.TransactionStatusCompleted
		txn.CompletedAt = &completedAt
	} else {
		txn.PaymentMethod = models.PaymentMethodGateway
		txn.Status = models.TransactionStatusPending
		txn.ProviderPaymentID = "BZ-" + uuid.NewString()
		txn.ProviderStatus = services.GatewayStatusPending
	}

	if err := h.db.Create(&txn).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventInsert,
		Table: realtime.TableTransactions,
		New:   txn,
	})

	response := fiber.Map{"transaction": txn}
	if price == 0 {
		h.payments.ActivatePremium(c.Context(), &txn)
	} else {
		response["checkout_url"] = h.gateway.CheckoutURL(txn.ProviderPaymentID, txn.Amount, req.ReturnURL)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    response,
	})
}

// GetTransaction returns one transaction. Absent records come back 404, a
// distinct outcome from a failed fetch.
func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	txn, err := h.payments.GetTransaction(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	if txn.UserID == nil || *txn.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "transaction not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": txn})
}

// VerifyTransaction is the manual refresh path: ask the gateway for the
// authoritative status and reconcile against it. Gateway failures leave the
// transaction pending; the response reflects whatever state we ended up in.
func (h *PaymentHandler) VerifyTransaction(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	txn, err := h.payments.GetTransaction(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	if txn.UserID == nil || *txn.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "transaction not found")
	}

	updated := h.payments.VerifyAndReconcile(c.Context(), txn, models.ReconcileSourceManual)

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

type webhookRequest struct {
	ProviderPaymentID string          `json:"provider_payment_id" validate:"required"`
	Status            string          `json:"status" validate:"required"`
	RawPayload        json.RawMessage `json:"raw_payload"`
}

// Webhook is the gateway's asynchronous notification path. The caller knows
// only the provider-side identifier; reconciliation is keyed on it.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	_, err := h.payments.ReconcileByProviderID(c.Context(), req.ProviderPaymentID, req.Status, req.RawPayload)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "transaction not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "reconciliation failed"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListTransactions returns transaction history with filters. Admin only.
func (h *PaymentHandler) ListTransactions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.PaymentTransaction{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		query = query.Where("user_id = ?", parsed)
	}
	if adID := strings.TrimSpace(c.Query("ad_id")); adID != "" {
		parsed, err := uuid.Parse(adID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid ad_id")
		}
		query = query.Where("ad_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var txns []models.PaymentTransaction
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&txns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
