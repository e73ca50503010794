package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/phone"
	"github.com/example/partsmarket/internal/utils"
)

// MessageSender delivers a plain text message to a phone number.
type MessageSender interface {
	Send(ctx context.Context, to, body string) error
}

// ShopHandler manages shops and forwards part requests to them.
type ShopHandler struct {
	db        *gorm.DB
	messenger MessageSender
}

// NewShopHandler constructs ShopHandler.
func NewShopHandler(db *gorm.DB, messenger MessageSender) *ShopHandler {
	return &ShopHandler{db: db, messenger: messenger}
}

type shopRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Active      *bool  `json:"active"`
}

// ListShops returns shops, optionally only active ones.
func (h *ShopHandler) ListShops(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Shop{})
	if c.Query("active") == "true" {
		query = query.Where("active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var shops []models.Shop
	if err := query.Order("name asc").Limit(pg.Limit).Offset(pg.Offset).Find(&shops).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": shops, "pagination": pg.Meta(total)})
}

// CreateShop persists a new shop.
func (h *ShopHandler) CreateShop(c *fiber.Ctx) error {
	var req shopRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	number, err := phone.Normalize(req.PhoneNumber)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid Sri Lankan phone number")
	}

	active := req.Active == nil || *req.Active
	shop := models.Shop{
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: number,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Active:      active,
	}
	if err := h.db.Create(&shop).Error; err != nil {
		return err
	}
	if !active {
		// gorm writes the column default over a zero value on create.
		if err := h.db.Model(&shop).Update("active", false).Error; err != nil {
			return err
		}
		shop.Active = false
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": shop})
}

// UpdateShop replaces a shop's details.
func (h *ShopHandler) UpdateShop(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var shop models.Shop
	if err := h.db.First(&shop, "id = ?", id).Error; err != nil {
		return notFound(err, "shop not found")
	}

	var req shopRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	number, err := phone.Normalize(req.PhoneNumber)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid Sri Lankan phone number")
	}

	updates := map[string]interface{}{
		"name":         strings.TrimSpace(req.Name),
		"phone_number": number,
		"email":        strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := h.db.Model(&shop).Updates(updates).Error; err != nil {
		return err
	}
	if err := h.db.First(&shop, "id = ?", shop.ID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": shop})
}

type assignRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Message   string `json:"message" validate:"max=1000"`
}

// AssignRequest forwards a part request to a shop over WhatsApp. The link is
// stored even when delivery fails; "notified" reports the outcome.
func (h *ShopHandler) AssignRequest(c *fiber.Ctx) error {
	shopID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req assignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var shop models.Shop
	if err := h.db.First(&shop, "id = ?", shopID).Error; err != nil {
		return notFound(err, "shop not found")
	}
	if !shop.Active {
		return fiber.NewError(fiber.StatusConflict, "shop is not active")
	}

	var request models.VehiclePartRequest
	if err := h.db.First(&request, "id = ?", req.RequestID).Error; err != nil {
		return notFound(err, "request not found")
	}

	link := models.RequestShop{RequestID: request.ID, ShopID: shop.ID, Message: req.Message}
	result := h.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "request already sent to this shop")
	}

	if err := h.messenger.Send(c.UserContext(), shop.PhoneNumber, shopMessage(&shop, &request, req.Message)); err != nil {
		log.Printf("[Shop] WhatsApp to %s failed: %v", shop.PhoneNumber, err)
	} else {
		link.Notified = true
		if err := h.db.Model(&link).Update("notified", true).Error; err != nil {
			return err
		}
	}

	if request.Status == models.RequestStatusPending {
		if err := h.db.Model(&request).Update("status", models.RequestStatusInProgress).Error; err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": link, "notified": link.Notified})
}

func shopMessage(shop *models.Shop, r *models.VehiclePartRequest, note string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s, a customer is looking for a part.\n", shop.Name)
	fmt.Fprintf(&b, "Vehicle: %s\n", r.VehicleDisplay())
	fmt.Fprintf(&b, "Part: %s\n", r.PartName)
	if r.PartNumber != "" {
		fmt.Fprintf(&b, "Part number: %s\n", r.PartNumber)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", r.Description)
	}
	if r.PartImage != "" {
		fmt.Fprintf(&b, "Photo: %s\n", r.PartImage)
	}
	if note != "" {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	fmt.Fprintf(&b, "Reference: %s", r.ID)
	return b.String()
}
