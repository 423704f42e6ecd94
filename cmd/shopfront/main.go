package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"shopfront/internal/config"
	"shopfront/internal/http/handlers"
	applog "shopfront/internal/log"
	"shopfront/internal/notify"
	"shopfront/internal/realtime"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Auth wiring
	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}

	// Realtime channel: in-process hub, routed through Redis when configured
	// so clients on other instances still get their events.
	hub := realtime.NewHub()
	var rt realtime.Publisher = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bridge := realtime.NewRedisBridge(rdb, hub)
		go bridge.Run(context.Background())
		rt = bridge
		log.Printf("[realtime] redis fan-out via %s", cfg.RedisAddr)
	}

	// Confirmation events are best-effort: a broker that is down at startup
	// just means no confirmations, never a dead service.
	rabbit, err := notify.NewRabbit(cfg.AMQPURL, cfg.AMQPExch)
	if err != nil {
		log.Printf("[warn] amqp unavailable, confirmations disabled: %v", err)
		rabbit = nil
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/api/v1/events"
		},
	}))

	// ---------- Routes ----------
	deps := handlers.NewDeps(db, cfg, authSvc, hub, rt, rabbit)
	api := app.Group("/api/v1")

	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts, try again later"})
		},
	}), deps.AuthHandler.Login)
	api.Post("/auth/logout", deps.AuthHandler.Logout)

	orders := api.Group("/orders", handlers.RequireUser(authSvc))
	orders.Post("/", deps.OrderHandler.Create)
	orders.Get("/", deps.OrderHandler.List)
	orders.Get("/:id", deps.OrderHandler.Get)
	api.Put("/orders/:id/status", handlers.RequireAdmin(authSvc), deps.OrderHandler.UpdateStatus)

	msgs := api.Group("/messages", handlers.RequireUser(authSvc))
	msgs.Get("/", deps.MessageHandler.List)
	msgs.Post("/", deps.MessageHandler.Send)
	msgs.Put("/read-all", deps.MessageHandler.MarkAllRead)
	msgs.Get("/unread/count", deps.MessageHandler.UnreadCount)
	msgs.Get("/conversations", deps.MessageHandler.Conversations)
	msgs.Get("/:id", deps.MessageHandler.Get)
	msgs.Put("/:id/read", deps.MessageHandler.MarkRead)

	api.Get("/events", handlers.RequireUser(authSvc), deps.EventsHandler.Stream)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
