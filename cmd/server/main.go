package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"github.com/localnerve/tipjar/internal/config"
	"github.com/localnerve/tipjar/internal/database"
	"github.com/localnerve/tipjar/internal/handlers"
	applogger "github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/middleware"
	"github.com/localnerve/tipjar/internal/payments"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/localnerve/tipjar/internal/types"
	"github.com/localnerve/tipjar/internal/workers"

	_ "github.com/localnerve/tipjar/docs/api" // Swagger docs
)

// @title TipJar API
// @version 1.0.0
// @description Go Fiber donation platform data service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/tipjar
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := applogger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer applogger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Session/notification state, optionally persisted to disk
	var adapter state.Adapter
	if cfg.StateFile != "" {
		adapter = state.NewFileAdapter(cfg.StateFile)
	}
	store, err := state.NewStore(adapter)
	if err != nil {
		log.Fatalf("Failed to load state store: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("tipjar")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	healthHandler := &handlers.HealthHandler{DB: db, Config: cfg}
	creatorHandler := &handlers.CreatorHandler{DB: db, State: store}
	donationHandler := &handlers.DonationHandler{DB: db, Config: cfg, State: store}
	paymentHandler := &handlers.PaymentHandler{DB: db, State: store}
	goalHandler := &handlers.GoalHandler{DB: db}
	messageHandler := &handlers.MessageHandler{DB: db}
	analyticsHandler := &handlers.AnalyticsHandler{DB: db}
	notificationHandler := &handlers.NotificationHandler{DB: db, State: store}

	api.Get("/health", healthHandler.Get)

	// Public creator page routes
	api.Get("/creators/:username/donations/top", donationHandler.Top)
	api.Get("/creators/:username/donations/recent", donationHandler.Recent)
	api.Post("/creators/:username/donations", donationHandler.Create)
	api.Post("/creators/:username/messages", messageHandler.Create)
	api.Get("/creators/:username/goals", goalHandler.ListPublic)

	// Payment provider callbacks
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Authenticated creator routes. "me" is registered before ":username" so
	// the public profile route never shadows it.
	api.Post("/creators", middleware.AuthUser(cfg), creatorHandler.Register)
	api.Get("/creators/me/stats", middleware.AuthUser(cfg), creatorHandler.GetMyStats)
	api.Get("/creators/me", middleware.AuthUser(cfg), creatorHandler.GetMe)
	api.Put("/creators/me", middleware.AuthUser(cfg), creatorHandler.UpdateMe)
	api.Delete("/creators/me", middleware.AuthUser(cfg), creatorHandler.DeactivateMe)
	api.Get("/creators/:username", creatorHandler.GetPublicProfile)

	api.Get("/donations/me", middleware.AuthUser(cfg), donationHandler.ListMine)
	api.Post("/donations/:id/refund", middleware.AuthUser(cfg), donationHandler.Refund)

	api.Get("/goals/me", middleware.AuthUser(cfg), goalHandler.ListMine)
	api.Post("/goals", middleware.AuthUser(cfg), goalHandler.Create)
	api.Put("/goals/:id", middleware.AuthUser(cfg), goalHandler.Update)

	api.Get("/messages/unread-count", middleware.AuthUser(cfg), messageHandler.UnreadCount)
	api.Get("/messages", middleware.AuthUser(cfg), messageHandler.ListMine)
	api.Post("/messages/:id/read", middleware.AuthUser(cfg), messageHandler.MarkRead)

	api.Get("/analytics", middleware.AuthUser(cfg), analyticsHandler.GetRange)
	api.Get("/notifications", middleware.AuthUser(cfg), notificationHandler.Drain)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer initialization is deferred to the first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Payment reconciliation worker, only when a provider is configured
	if cfg.PaymentProviderURL != "" {
		reconciler := &workers.Reconciler{
			DB:       db,
			Client:   payments.NewClient(cfg.PaymentProviderURL),
			State:    store,
			Interval: cfg.ReconcileInterval,
		}
		reconciler.Start(workerCtx)
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		stopWorkers()
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
