package admin

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/types"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/auth"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/phone"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/router"
)

// Controller serves the operator endpoints behind the admin JWT gate.
type Controller struct {
	manager  *session.Manager
	store    *store.Store
	pin      string
	tokenTTL time.Duration
}

func NewController(manager *session.Manager, st *store.Store) *Controller {
	return &Controller{
		manager:  manager,
		store:    st,
		pin:      env.GetEnvStringOrDefault("ADMIN_PIN", ""),
		tokenTTL: env.GetEnvDurationOrDefault("ADMIN_TOKEN_TTL", 12*time.Hour),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// Login exchanges the operator PIN for a signed admin token, delivered both
// as a cookie and in the body for non-browser clients.
func (ctl *Controller) Login(c *fiber.Ctx) error {
	var req types.RequestAdminLogin
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}
	if ctl.pin == "" {
		return router.ResponseForbidden(c, "Admin login is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(req.Pin), []byte(ctl.pin)) != 1 {
		return router.ResponseUnauthorized(c, "Invalid PIN")
	}

	token, err := auth.GenerateAdminToken(ctl.tokenTTL)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to sign admin token")
		return router.ResponseInternalError(c, "Failed to issue token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.AdminCookieName,
		Value:    token,
		Expires:  time.Now().Add(ctl.tokenTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return router.ResponseSuccessWithData(c, "Admin authenticated", fiber.Map{
		"token":      token,
		"expires_in": int(ctl.tokenTTL.Seconds()),
	})
}

func (ctl *Controller) Sessions(c *fiber.Ctx) error {
	bots, err := ctl.manager.Snapshot(requestContext(c))
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list sessions")
		return router.ResponseInternalError(c, "Failed to list sessions")
	}
	return router.ResponseSuccessWithData(c, "Sessions retrieved", fiber.Map{
		"count":    len(bots),
		"sessions": bots,
	})
}

func (ctl *Controller) Stats(c *fiber.Ctx) error {
	stats, err := ctl.store.AdminStats(requestContext(c))
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to read stats")
		return router.ResponseInternalError(c, "Failed to read stats")
	}
	return router.ResponseSuccessWithData(c, "Stats retrieved", fiber.Map{
		"connections": ctl.manager.Registry().Len(),
		"totals":      stats,
	})
}

func (ctl *Controller) DeleteSession(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	if err := ctl.manager.DeleteSession(requestContext(c), number); err != nil {
		log.Print(c).WithError(err).Error("Session purge failed")
		return router.ResponseInternalError(c, "Failed to delete session")
	}
	return router.ResponseSuccess(c, "Session deleted")
}

// PurgeAll deletes every session, live or persisted. The confirm query guard
// keeps a stray request from wiping the fleet.
func (ctl *Controller) PurgeAll(c *fiber.Ctx) error {
	if c.Query("confirm") != "YES_DELETE_ALL" {
		return router.ResponseBadRequest(c, "Pass confirm=YES_DELETE_ALL to delete every session")
	}
	count, err := ctl.manager.PurgeAll(requestContext(c))
	if err != nil {
		log.Print(c).WithError(err).Error("Fleet purge failed")
		return router.ResponseInternalError(c, "Failed to purge sessions")
	}
	log.Print(c).Warn("All sessions purged by admin")
	return router.ResponseSuccessWithData(c, "All sessions deleted", fiber.Map{
		"deleted": count,
	})
}
