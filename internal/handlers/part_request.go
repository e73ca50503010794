package handlers

import (
	"context"
	"log"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/partsmarket/internal/middleware"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/services"
	"github.com/example/partsmarket/internal/storage"
	"github.com/example/partsmarket/internal/utils"
)

// PartRequestHandler manages vehicle part requests.
type PartRequestHandler struct {
	db       *gorm.DB
	storage  storage.Provider
	telegram *services.TelegramService
}

// NewPartRequestHandler constructs PartRequestHandler.
func NewPartRequestHandler(db *gorm.DB, store storage.Provider, telegram *services.TelegramService) *PartRequestHandler {
	return &PartRequestHandler{db: db, storage: store, telegram: telegram}
}

type createPartRequest struct {
	VehicleType  string `form:"vehicle_type" json:"vehicle_type" validate:"required,oneof=car truck motorcycle bus van suv other"`
	VehicleModel string `form:"vehicle_model" json:"vehicle_model" validate:"required,max=100"`
	VehicleYear  int    `form:"vehicle_year" json:"vehicle_year" validate:"required,min=1900"`
	PartName     string `form:"part_name" json:"part_name" validate:"required,max=200"`
	PartNumber   string `form:"part_number" json:"part_number" validate:"max=100"`
	Description  string `form:"description" json:"description"`
}

type updatePartRequest struct {
	VehicleModel *string `json:"vehicle_model" validate:"omitempty,max=100"`
	VehicleYear  *int    `json:"vehicle_year" validate:"omitempty,min=1900"`
	PartName     *string `json:"part_name" validate:"omitempty,max=200"`
	PartNumber   *string `json:"part_number" validate:"omitempty,max=100"`
	Description  *string `json:"description"`
	Status       *string `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
}

type mediaField struct {
	name     string
	folder   string
	validate func(*multipart.FileHeader) error
	assign   func(*models.VehiclePartRequest, string)
}

var partRequestMedia = []mediaField{
	{"vehicle_image", "vehicle_images", storage.ValidateImage, func(r *models.VehiclePartRequest, u string) { r.VehicleImage = u }},
	{"part_image", "part_images", storage.ValidateImage, func(r *models.VehiclePartRequest, u string) { r.PartImage = u }},
	{"part_video", "part_videos", storage.ValidateVideo, func(r *models.VehiclePartRequest, u string) { r.PartVideo = u }},
}

func validVehicleYear(year int) bool {
	return year >= 1900 && year <= time.Now().Year()+1
}

// CreatePartRequest stores a new request with its optional media files.
func (h *PartRequestHandler) CreatePartRequest(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createPartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !validVehicleYear(req.VehicleYear) {
		return fiber.NewError(fiber.StatusBadRequest, "vehicle_year is out of range")
	}

	files := map[string]*multipart.FileHeader{}
	for _, m := range partRequestMedia {
		fh, err := c.FormFile(m.name)
		if err != nil {
			continue
		}
		if err := m.validate(fh); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		files[m.name] = fh
	}

	request := models.VehiclePartRequest{
		UserID:       userID,
		VehicleType:  req.VehicleType,
		VehicleModel: req.VehicleModel,
		VehicleYear:  req.VehicleYear,
		PartName:     req.PartName,
		PartNumber:   req.PartNumber,
		Description:  req.Description,
		Status:       models.RequestStatusPending,
	}

	var uploaded []string
	for _, m := range partRequestMedia {
		fh, ok := files[m.name]
		if !ok {
			continue
		}
		url, err := h.storage.Upload(c.UserContext(), fh, m.folder)
		if err != nil {
			h.discard(uploaded)
			log.Printf("[PartRequest] Upload of %s failed: %v", m.name, err)
			return fiber.NewError(fiber.StatusBadGateway, "failed to store "+m.name)
		}
		uploaded = append(uploaded, url)
		m.assign(&request, url)
	}

	if err := h.db.Create(&request).Error; err != nil {
		h.discard(uploaded)
		return err
	}

	var customer models.User
	if err := h.db.First(&customer, "id = ?", userID).Error; err == nil {
		request.User = &customer
	}
	go func(r models.VehiclePartRequest) {
		if err := h.telegram.NotifyNewPartRequest(&r, r.User); err != nil {
			log.Printf("[PartRequest] Telegram notification failed: %v", err)
		}
	}(request)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "vehicle part request created successfully",
		"data":    request,
	})
}

// ListPartRequests returns the caller's requests, newest first.
func (h *PartRequestHandler) ListPartRequests(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.VehiclePartRequest{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		if !models.IsValidRequestStatus(status) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		query = query.Where("status = ?", status)
	}
	if vt := c.Query("vehicle_type"); vt != "" {
		query = query.Where("vehicle_type = ?", vt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var requests []models.VehiclePartRequest
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).
		Find(&requests).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       requests,
		"pagination": pg.Meta(total),
	})
}

// GetPartRequest returns one of the caller's requests with its offers.
func (h *PartRequestHandler) GetPartRequest(c *fiber.Ctx) error {
	request, err := h.owned(c, h.db.Preload("Products").Preload("Shops.Shop"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": request})
}

// UpdatePartRequest edits text fields and the status.
func (h *PartRequestHandler) UpdatePartRequest(c *fiber.Ctx) error {
	request, err := h.owned(c, h.db)
	if err != nil {
		return err
	}

	var req updatePartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.VehicleModel != nil {
		updates["vehicle_model"] = *req.VehicleModel
	}
	if req.VehicleYear != nil {
		if !validVehicleYear(*req.VehicleYear) {
			return fiber.NewError(fiber.StatusBadRequest, "vehicle_year is out of range")
		}
		updates["vehicle_year"] = *req.VehicleYear
	}
	if req.PartName != nil {
		updates["part_name"] = *req.PartName
	}
	if req.PartNumber != nil {
		updates["part_number"] = *req.PartNumber
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(request).Updates(updates).Error; err != nil {
		return err
	}
	if err := h.db.First(request, "id = ?", request.ID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "request updated", "data": request})
}

// DeletePartRequest removes a request together with its shop links, its
// product offers and the cart and order lines that point at those offers.
func (h *PartRequestHandler) DeletePartRequest(c *fiber.Ctx) error {
	request, err := h.owned(c, h.db)
	if err != nil {
		return err
	}

	var products []models.Product
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", request.ID).Find(&products).Error; err != nil {
			return err
		}
		if len(products) > 0 {
			ids := make([]uuid.UUID, len(products))
			for i, p := range products {
				ids[i] = p.ID
			}
			if err := tx.Where("product_id IN ?", ids).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id IN ?", ids).Delete(&models.OrderItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.Product{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("request_id = ?", request.ID).Delete(&models.RequestShop{}).Error; err != nil {
			return err
		}
		return tx.Delete(request).Error
	})
	if err != nil {
		return err
	}

	media := []string{request.VehicleImage, request.PartImage, request.PartVideo}
	for _, p := range products {
		media = append(media, p.Image)
	}
	h.discard(media)
	return c.JSON(fiber.Map{"success": true, "message": "request deleted"})
}

// Stats counts the caller's requests per status.
func (h *PartRequestHandler) Stats(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := h.db.Model(&models.VehiclePartRequest{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	stats := fiber.Map{
		"total":                        int64(0),
		models.RequestStatusPending:    int64(0),
		models.RequestStatusInProgress: int64(0),
		models.RequestStatusCompleted:  int64(0),
		models.RequestStatusCancelled:  int64(0),
	}
	var total int64
	for _, row := range rows {
		stats[row.Status] = row.Count
		total += row.Count
	}
	stats["total"] = total

	return c.JSON(fiber.Map{"success": true, "data": stats})
}

func (h *PartRequestHandler) owned(c *fiber.Ctx, db *gorm.DB) (*models.VehiclePartRequest, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}

	var request models.VehiclePartRequest
	if err := db.First(&request, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, notFound(err, "request not found")
	}
	return &request, nil
}

func (h *PartRequestHandler) discard(urls []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := h.storage.Delete(ctx, url); err != nil {
			log.Printf("[PartRequest] Failed to delete %s: %v", url, err)
		}
	}
}
