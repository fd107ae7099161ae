package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/syncforge/stripemirror/app/controllers"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// Webhooks stay outside /api so the provider-facing URL is stable even
	// if the admin API moves.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
