package user

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/types"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/phone"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/router"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

// SessionCookieName carries the web session token between dashboard requests.
const SessionCookieName = "session_token"

// Controller serves account management and the per-number dashboard surface.
type Controller struct {
	manager *session.Manager
	store   *store.Store
}

func NewController(manager *session.Manager, st *store.Store) *Controller {
	return &Controller{manager: manager, store: st}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func sessionToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookieName); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireUser rejects requests without a valid web session and stores the
// resolved user in the request locals.
func (ctl *Controller) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return router.ResponseUnauthorized(c, "Authentication required")
		}
		user, err := ctl.store.ValidateWebSession(requestContext(c), token)
		if err != nil {
			log.Print(c).WithError(err).Error("Web session lookup failed")
			return router.ResponseInternalError(c, "Failed to validate session")
		}
		if user == nil {
			return router.ResponseUnauthorized(c, "Session expired or invalid")
		}
		c.Locals("user", user)
		return c.Next()
	}
}

// OptionalUser resolves a web session when one is present but never rejects;
// public endpoints use it to attribute work to the caller.
func (ctl *Controller) OptionalUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return c.Next()
		}
		user, err := ctl.store.ValidateWebSession(requestContext(c), token)
		if err == nil && user != nil {
			c.Locals("user", user)
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *store.User {
	user, _ := c.Locals("user").(*store.User)
	return user
}

func (ctl *Controller) Register(c *fiber.Ctx) error {
	var req types.RequestRegister
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if len(req.Username) < 3 {
		return router.ResponseBadRequest(c, "Username must be at least 3 characters")
	}
	if len(req.Password) < 8 {
		return router.ResponseBadRequest(c, "Password must be at least 8 characters")
	}

	user, err := ctl.store.CreateUser(requestContext(c), req.Username, req.Password, req.Email, req.FullName)
	if err == store.ErrUsernameTaken {
		return router.ResponseConflict(c, "Username already exists")
	}
	if err != nil {
		log.Print(c).WithError(err).Error("User creation failed")
		return router.ResponseInternalError(c, "Failed to create user")
	}

	log.Print(c).Info("User registered: " + user.Username)
	return router.ResponseSuccessWithData(c, "User registered", user)
}

func (ctl *Controller) Login(c *fiber.Ctx) error {
	var req types.RequestLogin
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	ctx := requestContext(c)
	user, err := ctl.store.AuthenticateUser(ctx, strings.TrimSpace(strings.ToLower(req.Username)), req.Password)
	if err == store.ErrInvalidCredentials {
		return router.ResponseUnauthorized(c, "Invalid username or password")
	}
	if err != nil {
		log.Print(c).WithError(err).Error("Login failed")
		return router.ResponseInternalError(c, "Failed to log in")
	}

	token := uuid.NewString()
	if err := ctl.store.CreateWebSession(ctx, user.ID, token, c.IP(), c.Get(fiber.HeaderUserAgent)); err != nil {
		log.Print(c).WithError(err).Error("Web session creation failed")
		return router.ResponseInternalError(c, "Failed to create session")
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(7 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return router.ResponseSuccessWithData(c, "Login successful", fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (ctl *Controller) Logout(c *fiber.Ctx) error {
	if token := sessionToken(c); token != "" {
		if err := ctl.store.DeleteWebSession(requestContext(c), token); err != nil {
			log.Print(c).WithError(err).Warn("Web session delete failed")
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return router.ResponseSuccess(c, "Logged out")
}

// Data returns the caller's account plus every owned number with its live
// state, feature configuration and usage counters.
func (ctl *Controller) Data(c *fiber.Ctx) error {
	user := currentUser(c)
	ctx := requestContext(c)

	sessions, err := ctl.store.UserSessions(ctx, user.ID)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list owned sessions")
		return router.ResponseInternalError(c, "Failed to load user data")
	}

	registry := ctl.manager.Registry()
	bots := make([]fiber.Map, 0, len(sessions))
	for _, sess := range sessions {
		entry := fiber.Map{
			"number":         sess.Number,
			"is_active":      sess.IsActive,
			"last_connected": sess.LastConnected,
			"connected":      false,
			"state":          "disconnected",
		}
		if handle := registry.Get(sess.Number); handle != nil {
			entry["connected"] = handle.LoggedIn()
			entry["state"] = handle.State()
			entry["uptime_seconds"] = int64(handle.Age().Seconds())
		}
		if cfg, err := ctl.store.GetFeatureConfig(ctx, sess.Number); err == nil {
			entry["config"] = cfg
		}
		if usage, err := ctl.store.UsageSummary(ctx, sess.Number); err == nil {
			entry["usage"] = usage
		}
		bots = append(bots, entry)
	}

	return router.ResponseSuccessWithData(c, "User data retrieved", fiber.Map{
		"user": user,
		"bots": bots,
	})
}

// ownedNumber validates the path number and checks the caller owns it; admins
// bypass the ownership check.
func (ctl *Controller) ownedNumber(c *fiber.Ctx) (string, error) {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return "", router.ResponseBadRequest(c, err.Error())
	}
	user := currentUser(c)
	if user.Role == "admin" {
		return number, nil
	}
	owns, err := ctl.store.OwnsNumber(requestContext(c), user.ID, number)
	if err != nil {
		log.Print(c).WithError(err).Error("Ownership lookup failed")
		return "", router.ResponseInternalError(c, "Failed to check ownership")
	}
	if !owns {
		return "", router.ResponseForbidden(c, "You do not own this number")
	}
	return number, nil
}

func (ctl *Controller) ConfigGet(c *fiber.Ctx) error {
	number, err := ctl.ownedNumber(c)
	if err != nil || number == "" {
		return err
	}
	cfg, err := ctl.store.GetFeatureConfig(requestContext(c), number)
	if err != nil {
		log.Print(c).WithError(err).Error("Config read failed")
		return router.ResponseInternalError(c, "Failed to read configuration")
	}
	return router.ResponseSuccessWithData(c, "Configuration retrieved", cfg)
}

// ConfigSet merges the posted fields over the stored configuration. Absent
// fields keep their current values.
func (ctl *Controller) ConfigSet(c *fiber.Ctx) error {
	number, err := ctl.ownedNumber(c)
	if err != nil || number == "" {
		return err
	}

	ctx := requestContext(c)
	cfg, err := ctl.store.GetFeatureConfig(ctx, number)
	if err != nil {
		log.Print(c).WithError(err).Error("Config read failed")
		return router.ResponseInternalError(c, "Failed to read configuration")
	}

	if err := c.BodyParser(&cfg); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	for _, emoji := range cfg.AutoLikeEmoji {
		if err := whatsapp.ValidateEmoji(emoji); err != nil {
			return router.ResponseBadRequest(c, "AUTO_LIKE_EMOJI entries must be single emoji")
		}
	}
	if cfg.Prefix == "" || len([]rune(cfg.Prefix)) != 1 {
		return router.ResponseBadRequest(c, "PREFIX must be a single character")
	}
	cfg.WorkType = strings.ToLower(cfg.WorkType)
	if cfg.WorkType != "public" && cfg.WorkType != "private" {
		return router.ResponseBadRequest(c, "WORK_TYPE must be public or private")
	}

	if err := ctl.store.SaveFeatureConfig(ctx, number, cfg); err != nil {
		log.Print(c).WithError(err).Error("Config save failed")
		return router.ResponseInternalError(c, "Failed to save configuration")
	}
	return router.ResponseSuccessWithData(c, "Configuration updated", cfg)
}
