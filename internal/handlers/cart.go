package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/partsmarket/internal/models"
)

// CartHandler manages anonymous session carts.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

// CreateCart opens an empty cart with a fresh session id.
func (h *CartHandler) CreateCart(c *fiber.Ctx) error {
	cart := models.Cart{SessionID: uuid.New()}
	if err := h.db.Create(&cart).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cartResponse(&cart)})
}

// GetCart returns a cart with its items and total.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cart, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cartResponse(cart)})
}

// DeleteCart removes a cart and its items.
func (h *CartHandler) DeleteCart(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Cart{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFound(err, "cart not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "cart deleted"})
}

type addCartItemRequest struct {
	CartID    string `json:"cart_id" validate:"required,uuid"`
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=1000"`
}

// AddItem puts a product in a cart. Adding a product already in the cart
// increases its quantity.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var cart models.Cart
	if err := h.db.First(&cart, "id = ?", req.CartID).Error; err != nil {
		return notFound(err, "cart not found")
	}
	var product models.Product
	if err := h.db.First(&product, "id = ?", req.ProductID).Error; err != nil {
		return notFound(err, "product not found")
	}

	item := models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: quantity}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("cart_items.quantity + ?", quantity)}),
	}).Create(&item).Error
	if err != nil {
		return err
	}

	// On conflict item keeps an id that was never stored, so reload fresh.
	var stored models.CartItem
	if err := h.db.Preload("Product").
		First(&stored, "cart_id = ? AND product_id = ?", cart.ID, product.ID).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": stored})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
}

// UpdateItem sets the quantity of a cart line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var item models.CartItem
	if err := h.db.First(&item, "id = ?", id).Error; err != nil {
		return notFound(err, "cart item not found")
	}
	if err := h.db.Model(&item).Update("quantity", req.Quantity).Error; err != nil {
		return err
	}
	item.Quantity = req.Quantity
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// RemoveItem deletes a cart line.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	result := h.db.Delete(&models.CartItem{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "cart item not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "item removed"})
}

func (h *CartHandler) load(c *fiber.Ctx) (*models.Cart, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	err = h.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).Preload("Items.Product").First(&cart, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "cart not found")
	}
	return &cart, err
}

func cartResponse(cart *models.Cart) fiber.Map {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return fiber.Map{
		"id":         cart.ID,
		"session_id": cart.SessionID,
		"items":      items,
		"item_count": count,
		"total":      cart.Total(),
		"currency":   models.DefaultCurrency,
		"created_at": cart.CreatedAt,
		"updated_at": cart.UpdatedAt,
	}
}
