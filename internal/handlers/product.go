package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/partsmarket/internal/middleware"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/storage"
	"github.com/example/partsmarket/internal/utils"
)

// ProductHandler manages offers made against part requests.
type ProductHandler struct {
	db      *gorm.DB
	storage storage.Provider
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, store storage.Provider) *ProductHandler {
	return &ProductHandler{db: db, storage: store}
}

type productRequest struct {
	RequestID   string  `form:"request_id" json:"request_id" validate:"required,uuid"`
	ShopID      string  `form:"shop_id" json:"shop_id" validate:"omitempty,uuid"`
	Name        string  `form:"name" json:"name" validate:"required,max=200"`
	Description string  `form:"description" json:"description"`
	Price       float64 `form:"price" json:"price" validate:"required,gt=0"`
}

// ListProducts returns offers on the caller's own requests.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.ownedQuery(userID)

	if v := c.Query("request"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request")
		}
		query = query.Where("products.request_id = ?", id)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("products.name ILIKE ? OR products.description ILIKE ?", q, q)
	}

	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("products.price <= ?", val)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	order := "products.created_at desc"
	switch c.Query("ordering") {
	case "price":
		order = "products.price asc"
	case "-price":
		order = "products.price desc"
	}

	var products []models.Product
	if err := query.Limit(pg.Limit).Offset(pg.Offset).Order(order).Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads one offer with its request.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.ownedQuery(userID).Preload("Request").
		First(&product, "products.id = ?", id).Error; err != nil {
		return notFound(err, "product not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// CreateProduct records an offer. An open request is marked completed in the
// same transaction.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product := models.Product{
		RequestID:   uuid.MustParse(req.RequestID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
	}
	if req.ShopID != "" {
		shopID := uuid.MustParse(req.ShopID)
		product.ShopID = &shopID
	}

	if fh, err := c.FormFile("image"); err == nil {
		if err := storage.ValidateImage(fh); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		url, err := h.storage.Upload(c.UserContext(), fh, "products")
		if err != nil {
			log.Printf("[Product] Image upload failed: %v", err)
			return fiber.NewError(fiber.StatusBadGateway, "failed to store image")
		}
		product.Image = url
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var request models.VehiclePartRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&request, "id = ?", product.RequestID).Error; err != nil {
			return notFound(err, "request not found")
		}

		if err := tx.Create(&product).Error; err != nil {
			return err
		}

		if request.IsOpen() {
			return tx.Model(&request).Update("status", models.RequestStatusCompleted).Error
		}
		return nil
	})
	if err != nil {
		if product.Image != "" {
			if derr := h.storage.Delete(c.UserContext(), product.Image); derr != nil {
				log.Printf("[Product] Failed to delete %s: %v", product.Image, derr)
			}
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) ownedQuery(userID uuid.UUID) *gorm.DB {
	return h.db.Model(&models.Product{}).
		Joins("JOIN vehicle_part_requests ON vehicle_part_requests.id = products.request_id").
		Where("vehicle_part_requests.user_id = ?", userID)
}

// RegisterProductRoutes attaches product routes. Writes go through admin.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, admin fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
	router.Post("/", admin, h.CreateProduct)
}
