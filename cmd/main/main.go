package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	cron "github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/router"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/admin"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/bot"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/dispatch"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/user"
)

func main() {
	ctx := context.Background()

	// Persistence first: eligibility records, feature configs, accounts.
	// Defaults to the same database the device credential container uses.
	dsn := env.GetEnvStringOrDefault("DATABASE_URL", "")
	if dsn == "" {
		dsn = env.MustGetEnvString("WHATSAPP_DATASTORE_URI")
	}
	st, err := store.Open(dsn)
	if err != nil {
		log.Print(nil).Fatal("Failed to open database: " + err.Error())
	}
	defer st.Close()

	// Transport credential store, shared by every connection.
	container, err := whatsapp.NewDatastore(ctx)
	if err != nil {
		log.Print(nil).Fatal("Failed to open device datastore: " + err.Error())
	}

	manager := session.NewManager(session.ConfigFromEnv(), st, container)

	// Explicit plugin registration: a name or alias collision is fatal here,
	// before any traffic is dispatched.
	plugins, err := dispatch.NewPluginRegistry(dispatch.BuiltinPlugins()...)
	if err != nil {
		log.Print(nil).Fatal("Plugin registration failed: " + err.Error())
	}
	manager.SetSink(dispatch.NewGateway(st, plugins, dispatch.NewChatbotFromEnv(), manager.OwnerNumber()))

	botCtl := bot.NewController(manager, st)
	adminCtl := admin.NewController(manager, st)
	userCtl := user.NewController(manager, st)

	// Cron with panic recovery and seconds-resolution specs.
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	app := fiber.New(fiber.Config{
		ErrorHandler:   router.HttpErrorHandler,
		BodyLimit:      router.BodyLimitBytes(),
		ReadBufferSize: 8192,
	})

	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	app.Use(router.HttpRealIP())

	app.Get("/favicon.ico", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	internal.Routes(app, botCtl, adminCtl, userCtl)
	internal.Startup(manager, st)
	internal.Routines(c, manager, st)

	address := env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")
	port := env.GetEnvStringOrDefault("SERVER_PORT", "7001")

	go func() {
		if err := app.Listen(address + ":" + port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// SIGINT closes every live connection before exit; SIGTERM only drains
	// HTTP so a rolling restart keeps sockets alive until the process dies.
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigShutdown

	c.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if sig == syscall.SIGINT {
		log.Print(nil).Info("SIGINT received, closing live connections")
		if err := manager.CloseAll(shutdownCtx); err != nil {
			log.Print(nil).WithError(err).Warn("Connection shutdown finished with errors")
		}
	} else {
		log.Print(nil).Info("SIGTERM received, draining HTTP only")
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Print(nil).Error(err.Error())
	}
}
