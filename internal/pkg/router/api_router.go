package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/syncforge/stripemirror/app/controllers"
	"github.com/syncforge/stripemirror/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(), middleware.APIKeyAuth())

	v1 := api.Group("/v1")
	v1.Post("/sync", controllers.HandleSyncBackfill)
	v1.Post("/sync/entity/:id", controllers.HandleSyncSingleEntity)
	v1.Post("/sync/entitlements/:customerID", controllers.HandleSyncEntitlements)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
