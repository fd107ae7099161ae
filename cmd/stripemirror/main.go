package main

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/syncforge/stripemirror/internal/pkg/config"
	"github.com/syncforge/stripemirror/internal/pkg/database"
	"github.com/syncforge/stripemirror/internal/pkg/env"
	"github.com/syncforge/stripemirror/internal/pkg/router"
)

func main() {
	app, cfg := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), cfg.Port))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if err := database.SetupDatabase(cfg); err != nil {
		log.Fatalf("database setup failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		// Webhook payloads are small; a tight limit keeps abusive requests out.
		BodyLimit: 1 << 20,
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app, cfg
}
