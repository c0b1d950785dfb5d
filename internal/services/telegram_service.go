package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatPrice formats price with currency and thousand separators.
func FormatPrice(amount int64, currency string) string {
	if currency == "" {
		currency = "UZS"
	}
	str := fmt.Sprintf("%d", amount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String() + " " + currency
}

// PaymentSuccessNotification contains data about a settled tier purchase.
type PaymentSuccessNotification struct {
	TransactionID string
	AdTitle       string
	Tier          string
	Amount        int64
	Currency      string
}

// NotifyPaymentSuccess sends notification about a completed premium purchase.
func (s *TelegramService) NotifyPaymentSuccess(payment PaymentSuccessNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ TO'LOV QABUL QILINDI!</b>
<b>📋 Tranzaksiya:</b> %s
<b>📣 E'lon:</b> %s
<b>⭐ Tarif:</b> %s
<b>💰 Summa:</b> %s
━━━━━━━━━━━━━━━━━━
<i>Bozor</i>`,
		payment.TransactionID,
		payment.AdTitle,
		payment.Tier,
		FormatPrice(payment.Amount, payment.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// AdSubmittedNotification contains data about a listing awaiting moderation.
type AdSubmittedNotification struct {
	AdID     string
	Title    string
	Category string
	City     string
	Price    int64
	Currency string
	UserName string
}

// NotifyAdSubmitted tells moderators a new listing is waiting in the queue.
func (s *TelegramService) NotifyAdSubmitted(ad AdSubmittedNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>📣 YANGI E'LON!</b>
<b>📋 Sarlavha:</b> %s
<b>🗂 Kategoriya:</b> %s
<b>📍 Shahar:</b> %s
<b>💰 Narx:</b> %s
<b>👤 Foydalanuvchi:</b> %s
<b>🆔</b> %s
━━━━━━━━━━━━━━━━━━`,
		ad.Title,
		ad.Category,
		ad.City,
		FormatPrice(ad.Price, ad.Currency),
		ad.UserName,
		ad.AdID,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyReport tells moderators a listing was flagged.
func (s *TelegramService) NotifyReport(adTitle, reason string) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>🚩 SHIKOYAT!</b>
<b>📣 E'lon:</b> %s
<b>❗ Sabab:</b> %s`,
		adTitle,
		reason,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
