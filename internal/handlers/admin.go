package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (h *AdminHandler) countByStatus(model interface{}) (map[string]int64, error) {
	var rows []statusCount
	if err := h.db.Model(model).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalShops int64
	if err := h.db.Model(&models.Shop{}).Where("active = ?", true).Count(&totalShops).Error; err != nil {
		return err
	}

	requestsByStatus, err := h.countByStatus(&models.VehiclePartRequest{})
	if err != nil {
		return err
	}
	ordersByStatus, err := h.countByStatus(&models.Order{})
	if err != nil {
		return err
	}

	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	var todayRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("created_at::date = CURRENT_DATE").
		Select("COALESCE(SUM(total), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":        totalUsers,
			"active_shops":       totalShops,
			"requests_by_status": requestsByStatus,
			"orders_by_status":   ordersByStatus,
			"total_revenue":      totalRevenue,
			"today_revenue":      todayRevenue,
			"currency":           models.DefaultCurrency,
		},
	})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("reference_number ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("ShippingAddress").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// ListAllPartRequests returns every customer's requests.
func (h *AdminHandler) ListAllPartRequests(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.VehiclePartRequest{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		q := "%" + search + "%"
		query = query.Where("part_name ILIKE ? OR vehicle_model ILIKE ? OR part_number ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var requests []models.VehiclePartRequest
	if err := query.Preload("User").Preload("Shops").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&requests).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       requests,
		"pagination": pg.Meta(total),
	})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		query = query.Where(
			"first_name ILIKE ? OR last_name ILIKE ? OR phone ILIKE ? OR email ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%", "%"+search+"%",
		)
	}
	if userType := c.Query("user_type"); userType != "" {
		query = query.Where("user_type = ?", userType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	type requestCount struct {
		UserID string
		Count  int64
	}
	var counts []requestCount
	if err := h.db.Model(&models.VehiclePartRequest{}).
		Select("user_id, count(*) as count").
		Group("user_id").
		Scan(&counts).Error; err != nil {
		return err
	}
	byUser := make(map[string]int64, len(counts))
	for _, rc := range counts {
		byUser[rc.UserID] = rc.Count
	}

	result := make([]fiber.Map, len(users))
	for i := range users {
		row := userResponse(&users[i])
		row["request_count"] = byUser[users[i].ID.String()]
		result[i] = row
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       result,
		"pagination": pg.Meta(total),
	})
}

type userStatusRequest struct {
	IsActive *bool  `json:"is_active" validate:"required"`
	UserType string `json:"user_type" validate:"omitempty,oneof=user admin moderator"`
}

// UpdateUserStatus enables or disables an account and optionally changes its type.
func (h *AdminHandler) UpdateUserStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req userStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{"is_active": *req.IsActive}
	if req.UserType != "" {
		updates["user_type"] = req.UserType
	}

	result := h.db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "user updated"})
}
