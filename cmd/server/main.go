package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/example/partsmarket/internal/config"
	"github.com/example/partsmarket/internal/database"
	"github.com/example/partsmarket/internal/handlers"
	"github.com/example/partsmarket/internal/limiter"
	"github.com/example/partsmarket/internal/otp"
	"github.com/example/partsmarket/internal/repository"
	"github.com/example/partsmarket/internal/routes"
	"github.com/example/partsmarket/internal/services"
	"github.com/example/partsmarket/internal/storage"
	"github.com/example/partsmarket/internal/tokens"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL, cfg.DatabaseLog)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = limiter.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Println("REDIS_URL not set, password reset throttling disabled and token revocation kept in memory")
	}

	store, err := storage.NewProvider(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	whatsApp := services.NewWhatsAppService(cfg)
	var channels services.ResetChannels
	if email := services.NewEmailService(cfg); email.Configured() {
		channels.Email = email
	}
	if whatsApp.Enabled() {
		channels.WhatsApp = whatsApp
	}

	policy := otp.NewPolicy()
	policy.TTL = cfg.OTPTTL
	policy.MaxAttempts = cfg.OTPMaxAttempts
	policy.LockDuration = cfg.OTPLockoutDuration

	users := repository.NewGormUserRepository(db)
	creds := services.BcryptCredentials{}
	var cooldown *limiter.Cooldown
	denylist := tokens.NewDenylist(nil, "revoked-token")
	if rdb != nil {
		cooldown = limiter.NewCooldown(rdb, "password-reset", cfg.ResetCooldown)
		denylist = tokens.NewDenylist(rdb, "revoked-token")
	}
	resets := services.NewPasswordResetService(users, creds, policy, cooldown, channels)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    60 << 20,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Accounts: services.NewAccountService(users, creds),
		Resets:   resets,
		Storage:  store,
		Telegram: services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
		WhatsApp: whatsApp,
		Denylist: denylist,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	resets.Wait()
}
