package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AhmadMHawwash/10xarch-sub002/app/controllers"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
)

// HttpRouter installs the inbound billing-platform webhook endpoint.
type HttpRouter struct {
	catalog catalog.Catalog
}

func NewHttpRouter(cat catalog.Catalog) *HttpRouter {
	return &HttpRouter{catalog: cat}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/stripe", controllers.HandleBillingWebhook(h.catalog))
}
