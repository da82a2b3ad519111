package internal

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/admin"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/bot"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/user"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/auth"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/router"
)

// Routes wires every endpoint. Controllers arrive fully constructed; nothing
// here reaches for globals.
func Routes(app *fiber.App, botCtl *bot.Controller, adminCtl *admin.Controller, userCtl *user.Controller) {
	app.Get("/health", botCtl.Health)

	// Cached GETs; the pairing endpoints must never be cached, so the cache
	// is scoped per route instead of applied app-wide.
	cached := router.HttpCacheInMemory(router.CacheTTLSeconds)

	api := app.Group(router.BaseURL + "/api")
	api.Get("/info", cached, botCtl.Info)

	// Pairing and fleet introspection. The optional user middleware lets a
	// logged-in dashboard caller claim the numbers it pairs.
	api.Get("/pair", userCtl.OptionalUser(), botCtl.Pair)
	api.Get("/qr", userCtl.OptionalUser(), botCtl.QR)
	api.Get("/status/:number", botCtl.Status)
	api.Get("/bots", cached, botCtl.Bots)

	// Dispatch and teardown, authorized by API token or owning user.
	api.Post("/send/:number", userCtl.OptionalUser(), botCtl.Send)
	api.Post("/disconnect/:number", userCtl.OptionalUser(), botCtl.Disconnect)

	botGroup := app.Group(router.BaseURL + "/bot")
	botGroup.Delete("/delsession/:number", userCtl.OptionalUser(), botCtl.DelSession)
	botGroup.Post("/delsession/:number", userCtl.OptionalUser(), botCtl.DelSession)
	botGroup.Post("/delsessions", userCtl.OptionalUser(), botCtl.DelSessions)

	// Accounts and the per-number dashboard.
	api.Post("/register", userCtl.Register)
	api.Post("/login", userCtl.Login)
	api.Post("/logout", userCtl.Logout)
	api.Get("/user/data", userCtl.RequireUser(), userCtl.Data)
	api.Get("/bot/:number/config", userCtl.RequireUser(), userCtl.ConfigGet)
	api.Post("/bot/:number/config", userCtl.RequireUser(), userCtl.ConfigSet)

	// Operator surface behind the admin JWT gate.
	adminGroup := app.Group(router.BaseURL + "/admin")
	adminGroup.Post("/login", adminCtl.Login)
	adminGroup.Get("/sessions", auth.AdminAuth(), adminCtl.Sessions)
	adminGroup.Get("/stats", auth.AdminAuth(), adminCtl.Stats)
	adminGroup.Delete("/session/:number", auth.AdminAuth(), adminCtl.DeleteSession)
	adminGroup.Delete("/delsessions/all", auth.AdminAuth(), adminCtl.PurgeAll)
}
