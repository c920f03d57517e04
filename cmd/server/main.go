package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"metafields-backend/internal/auditlog"
	"metafields-backend/internal/auth"
	"metafields-backend/internal/config"
	"metafields-backend/internal/engine"
	"metafields-backend/internal/rules"
	"metafields-backend/internal/sessions"
	"metafields-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s/%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Repositories and session provider
	ruleRepo := rules.NewRepo(db)
	logRepo := auditlog.NewRepo(db)
	sessionRepo := sessions.NewRepo(db)
	provider := sessions.NewProvider(sessionRepo, cfg.Shopify)

	// 5. Application engine
	matcher := engine.NewExpressionMatcher(engine.CollectionMatcher{})
	eng := engine.New(ruleRepo, logRepo, matcher, cfg.Engine.ProductLimit)
	clientFor := func(ctx context.Context, shop string) (engine.Catalog, error) {
		return provider.Client(ctx, shop)
	}

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (before middleware — no auth required)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterRoutes(app, authHandler)

	// 9. Webhook receiver (HMAC-verified, no JWT)
	webhookHandler := engine.NewWebhookHandler(eng, clientFor, cfg.Shopify.APISecret)
	engine.RegisterWebhookRoutes(app, webhookHandler)

	// 10. Admin API (JWT required)
	authMW := auth.Middleware(cfg.JWTSecret)

	rules.RegisterRoutes(app, rules.NewHandler(ruleRepo), authMW)
	auditlog.RegisterRoutes(app, auditlog.NewHandler(logRepo), authMW)
	sessions.RegisterRoutes(app, sessions.NewHandler(sessionRepo, cfg.Shopify.Shop), authMW)
	engine.RegisterRoutes(app, engine.NewHandler(eng, clientFor, cfg.Shopify.Shop), authMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}
