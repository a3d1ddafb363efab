package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/AhmadMHawwash/10xarch-sub002/app/controllers"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/middleware"
)

// ApiRouter installs the shared-key-protected internal usage API.
type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api/internal", limiter.New(), middleware.InternalAPIKeyMiddleware())

	api.Post("/tokens/deduct", controllers.HandleTokenDeduct)
	api.Post("/tokens/grant", controllers.HandleTokenGrant)
	api.Get("/tokens/balance", controllers.HandleTokenBalance)
	api.Get("/metrics/webhooks", controllers.HandleWebhookMetrics)
}
