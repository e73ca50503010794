package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/partsmarket/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	httpClient  *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPIBase,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
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

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
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

// FormatPrice formats an amount with thousand separators, two decimals and
// the currency code.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = models.DefaultCurrency
	}

	negative := amount < 0
	if negative {
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	str := fmt.Sprintf("%d", cents/100)

	var result strings.Builder
	if negative {
		result.WriteString("-")
	}
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	fmt.Fprintf(&result, ".%02d %s", cents%100, currency)
	return result.String()
}

// NotifyNewPartRequest tells the admins a customer is looking for a part.
func (s *TelegramService) NotifyNewPartRequest(req *models.VehiclePartRequest, customer *models.User) error {
	if s.adminChatID == "" {
		return nil
	}

	var b strings.Builder
	b.WriteString("<b>🔧 New part request</b>\n")
	fmt.Fprintf(&b, "<b>Vehicle:</b> %s\n", html.EscapeString(req.VehicleDisplay()))
	fmt.Fprintf(&b, "<b>Part:</b> %s\n", html.EscapeString(req.PartName))
	if req.PartNumber != "" {
		fmt.Fprintf(&b, "<b>Part number:</b> %s\n", html.EscapeString(req.PartNumber))
	}
	if customer != nil {
		fmt.Fprintf(&b, "<b>Customer:</b> %s (%s)\n", html.EscapeString(customer.FullName()), customer.Phone)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "<b>Notes:</b> %s\n", html.EscapeString(req.Description))
	}
	fmt.Fprintf(&b, "<b>ID:</b> <code>%s</code>", req.ID)

	return s.SendToAdmin(b.String())
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		currency := item.Currency
		if currency == "" {
			currency = order.Currency
		}
		name := item.Product.Name
		if name == "" {
			name = item.ProductID.String()
		}
		fmt.Fprintf(&itemsList, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(name),
			item.Quantity,
			FormatPrice(item.Price, currency),
			FormatPrice(item.Price*float64(item.Quantity), currency),
		)
	}

	customer := ""
	city := ""
	if addr := order.ShippingAddress; addr != nil {
		customer = strings.TrimSpace(addr.FirstName + " " + addr.LastName)
		city = addr.City
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Reference:</b> %s
<b>👤 Customer:</b> %s
<b>📍 City:</b> %s
<b>📱 Source:</b> %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.ReferenceNumber,
		html.EscapeString(customer),
		html.EscapeString(city),
		order.Source,
		itemsList.String(),
		FormatPrice(order.Total, order.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
