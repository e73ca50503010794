package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/partsmarket/internal/config"
	"github.com/example/partsmarket/internal/handlers"
	"github.com/example/partsmarket/internal/middleware"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/services"
	"github.com/example/partsmarket/internal/storage"
	"github.com/example/partsmarket/internal/tokens"
)

// Deps holds the services shared by the route handlers.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Accounts *services.AccountService
	Resets   *services.PasswordResetService
	Storage  storage.Provider
	Telegram *services.TelegramService
	WhatsApp handlers.MessageSender
	Denylist *tokens.Denylist
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	if d.Denylist == nil {
		d.Denylist = tokens.NewDenylist(nil, "revoked-token")
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Resets, d.Config, d.Denylist)
	resetHandler := handlers.NewPasswordResetHandler(d.Resets)
	profileHandler := handlers.NewProfileHandler(d.Accounts)
	partHandler := handlers.NewPartRequestHandler(d.DB, d.Storage, d.Telegram)
	shopHandler := handlers.NewShopHandler(d.DB, d.WhatsApp)
	productHandler := handlers.NewProductHandler(d.DB, d.Storage)
	cartHandler := handlers.NewCartHandler(d.DB)
	orderHandler := handlers.NewOrderHandler(d.DB, d.Telegram)
	adminHandler := handlers.NewAdminHandler(d.DB)

	requireAuth := middleware.AuthMiddleware(d.Config.JWTSecret, d.Denylist)
	requireAdmin := middleware.RequireUserType(models.UserTypeAdmin)

	if d.Config.StorageProvider == "" || d.Config.StorageProvider == "local" {
		app.Static("/uploads", d.Config.UploadDir)
	}

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", requireAuth, authHandler.Logout)
	auth.Post("/change-password", requireAuth, authHandler.ChangePassword)

	reset := auth.Group("/password-reset")
	reset.Post("/request", resetHandler.RequestReset)
	reset.Post("/verify", resetHandler.Verify)
	reset.Post("/confirm", resetHandler.Confirm)

	// Session carts and checkout need no account
	carts := api.Group("/carts")
	carts.Post("/", cartHandler.CreateCart)
	carts.Get("/:id", cartHandler.GetCart)
	carts.Delete("/:id", cartHandler.DeleteCart)

	cartItems := api.Group("/cart-items")
	cartItems.Post("/", cartHandler.AddItem)
	cartItems.Put("/:id", cartHandler.UpdateItem)
	cartItems.Patch("/:id", cartHandler.UpdateItem)
	cartItems.Delete("/:id", cartHandler.RemoveItem)

	orders := api.Group("/orders")
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/:id", orderHandler.GetOrder)

	// Protected routes
	protected := api.Group("", requireAuth)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)

	parts := protected.Group("/vehicle-part-requests")
	parts.Get("/stats", partHandler.Stats)
	parts.Get("/", partHandler.ListPartRequests)
	parts.Post("/", partHandler.CreatePartRequest)
	parts.Get("/:id", partHandler.GetPartRequest)
	parts.Put("/:id", partHandler.UpdatePartRequest)
	parts.Patch("/:id", partHandler.UpdatePartRequest)
	parts.Delete("/:id", partHandler.DeletePartRequest)

	productHandler.RegisterProductRoutes(protected.Group("/products"), requireAdmin)

	shops := protected.Group("/shops", requireAdmin)
	shops.Get("/", shopHandler.ListShops)
	shops.Post("/", shopHandler.CreateShop)
	shops.Put("/:id", shopHandler.UpdateShop)
	shops.Post("/:id/requests", shopHandler.AssignRequest)

	admin := protected.Group("/admin", requireAdmin)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/vehicle-part-requests", adminHandler.ListAllPartRequests)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Put("/users/:id", adminHandler.UpdateUserStatus)
}
