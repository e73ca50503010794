package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/services"
)

const referencePrefix = "ORD-"

var errEmptyCart = fiber.NewError(fiber.StatusBadRequest, "cart is empty")

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	telegram *services.TelegramService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, telegram *services.TelegramService) *OrderHandler {
	return &OrderHandler{db: db, telegram: telegram}
}

type shippingAddressRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Country   string `json:"country" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	PostCode  string `json:"post_code" validate:"required,max=20"`
	City      string `json:"city" validate:"required,max=100"`
	Address1  string `json:"address1" validate:"required,max=255"`
}

type createOrderRequest struct {
	CartID          string                 `json:"cart_id" validate:"required,uuid"`
	ShippingAddress shippingAddressRequest `json:"shipping_address" validate:"required"`
	Source          string                 `json:"source" validate:"required,oneof=web android ios"`
	Currency        string                 `json:"currency" validate:"omitempty,len=3,alpha"`
}

// CreateOrder checks out a cart. Prices are copied from the products at this
// moment.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	cartID := uuid.MustParse(req.CartID)

	var order models.Order
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cart, "id = ?", cartID).Error; err != nil {
			return notFound(err, "cart not found")
		}

		var items []models.CartItem
		if err := tx.Preload("Product").Where("cart_id = ?", cart.ID).
			Order("created_at asc").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return errEmptyCart
		}

		addr := req.ShippingAddress
		address := models.Address{
			FirstName: addr.FirstName,
			LastName:  addr.LastName,
			Country:   addr.Country,
			State:     addr.State,
			PostCode:  addr.PostCode,
			City:      addr.City,
			Address1:  addr.Address1,
		}
		if err := tx.Create(&address).Error; err != nil {
			return err
		}

		reference, err := uniqueReference(tx)
		if err != nil {
			return err
		}

		order = models.Order{
			ReferenceNumber:   reference,
			Currency:          currency,
			Source:            req.Source,
			Status:            models.OrderStatusPending,
			ShippingAddressID: address.ID,
			CartID:            &cart.ID,
		}
		for _, item := range items {
			if item.Product == nil {
				return fiber.NewError(fiber.StatusConflict, "cart contains a product that no longer exists")
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: item.ProductID,
				Price:     item.Product.Price,
				Currency:  currency,
				Quantity:  item.Quantity,
			})
			order.Total += item.Product.Price * float64(item.Quantity)
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		order.ShippingAddress = &address
		for i := range order.Items {
			order.Items[i].Product = items[i].Product
		}
		return nil
	})
	if err != nil {
		return err
	}

	go func(o models.Order) {
		if err := h.telegram.NotifyNewOrder(&o); err != nil {
			log.Printf("[Order] Telegram notification failed for %s: %v", o.ReferenceNumber, err)
		}
	}(order)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "order created successfully",
		"data":    order,
	})
}

// GetOrder returns an order with its items and shipping address.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.db.Preload("Items.Product").Preload("ShippingAddress").
		First(&order, "id = ?", id).Error; err != nil {
		return notFound(err, "order not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// newReferenceNumber returns "ORD-" followed by 12 upper-case hex characters.
func newReferenceNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referencePrefix + strings.ToUpper(hex[:12])
}

func uniqueReference(tx *gorm.DB) (string, error) {
	for {
		reference := newReferenceNumber()
		var existing models.Order
		err := tx.Select("id").First(&existing, "reference_number = ?", reference).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reference, nil
		}
		if err != nil {
			return "", err
		}
	}
}
