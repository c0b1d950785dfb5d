package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/utils"
)

// MessageHandler manages buyer-seller conversations.
type MessageHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
	clk clock.Clock
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(db *gorm.DB, hub *realtime.Hub, clk clock.Clock) *MessageHandler {
	return &MessageHandler{db: db, hub: hub, clk: clk}
}

type startConversationRequest struct {
	AdID string `json:"ad_id" validate:"required,uuid"`
	Body string `json:"body" validate:"required"`
}

// StartConversation opens (or reuses) the conversation for an ad and posts
// the first message.
func (h *MessageHandler) StartConversation(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req startConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	adID := uuid.MustParse(req.AdID)
	var ad models.Ad
	if err := h.db.First(&ad, "id = ? AND status = ?", adID, models.AdStatusApproved).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return err
	}

	if ad.UserID == userID {
		return fiber.NewError(fiber.StatusBadRequest, "cannot message your own ad")
	}

	conversation := models.Conversation{
		AdID:     ad.ID,
		BuyerID:  userID,
		SellerID: ad.UserID,
	}
	if err := h.db.
		Where("ad_id = ? AND buyer_id = ?", ad.ID, userID).
		FirstOrCreate(&conversation).Error; err != nil {
		return err
	}

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       userID,
		Body:           strings.TrimSpace(req.Body),
	}
	if err := h.db.Create(&message).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventInsert,
		Table: realtime.TableMessages,
		New:   message,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"conversation": conversation,
			"message":      message,
		},
	})
}

// ListConversations returns all conversations the user takes part in.
func (h *MessageHandler) ListConversations(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var conversations []models.Conversation
	if err := h.db.Preload("Ad").
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&conversations).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": conversations})
}

func (h *MessageHandler) loadParticipantConversation(c *fiber.Ctx, userID uuid.UUID) (*models.Conversation, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	var conversation models.Conversation
	if err := h.db.First(&conversation, "id = ? AND (buyer_id = ? OR seller_id = ?)", id, userID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "conversation not found")
		}
		return nil, err
	}
	return &conversation, nil
}

// ListMessages returns the messages of one conversation, oldest first.
func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	conversation, err := h.loadParticipantConversation(c, userID)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	var messages []models.Message
	if err := h.db.
		Where("conversation_id = ?", conversation.ID).
		Order("created_at asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&messages).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": messages})
}

type sendMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// SendMessage posts a message into an existing conversation.
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	conversation, err := h.loadParticipantConversation(c, userID)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       userID,
		Body:           strings.TrimSpace(req.Body),
	}
	if err := h.db.Create(&message).Error; err != nil {
		return err
	}

	h.hub.Publish(realtime.Event{
		Type:  realtime.EventInsert,
		Table: realtime.TableMessages,
		New:   message,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": message})
}

// MarkRead marks every message from the other participant as read.
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	conversation, err := h.loadParticipantConversation(c, userID)
	if err != nil {
		return err
	}

	now := h.clk.Now()
	if err := h.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversation.ID, userID).
		Update("read_at", now).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
