package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the webhook endpoint and the internal usage
// API. The price/tier catalog is built once here and handed to the
// routes that need it.
func InstallRouter(app *fiber.App) {
	cat := catalog.FromEnv()
	setup(app, NewHttpRouter(cat), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
