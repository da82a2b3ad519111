package bot

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/types"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/phone"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

var startedAt = time.Now()

// Controller serves the public bot endpoints. All shared state is reached
// through the injected manager and store.
type Controller struct {
	manager *session.Manager
	store   *store.Store
	token   string
}

func NewController(manager *session.Manager, st *store.Store) *Controller {
	return &Controller{
		manager: manager,
		store:   st,
		token:   env.GetEnvStringOrDefault("API_ACCESS_TOKEN", ""),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func currentUser(c *fiber.Ctx) *store.User {
	user, _ := c.Locals("user").(*store.User)
	return user
}

// authorize accepts either the shared API token or an authenticated user who
// owns the number. Admins pass regardless of ownership.
func (ctl *Controller) authorize(c *fiber.Ctx, token string, number string) bool {
	if ctl.token != "" && token == ctl.token {
		return true
	}
	user := currentUser(c)
	if user == nil {
		return false
	}
	if user.Role == "admin" {
		return true
	}
	owns, err := ctl.store.OwnsNumber(requestContext(c), user.ID, number)
	if err != nil {
		log.Print(c).WithError(err).Warn("Ownership lookup failed")
		return false
	}
	return owns
}

func badNumber(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// Pair requests a pairing code for a number. Repeated calls while a code is
// pending report pairing_in_progress with the cached code instead of starting
// a second handshake.
func (ctl *Controller) Pair(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Query("number"))
	if err != nil {
		return badNumber(c, err)
	}

	var userID *int64
	if user := currentUser(c); user != nil {
		userID = &user.ID
	}

	result := ctl.manager.Pair(requestContext(c), number, userID)
	log.Print(c).Info("Pairing " + whatsapp.MaskJID(number) + " -> " + string(result.Status))

	payload := fiber.Map{
		"success": true,
		"status":  result.Status,
		"number":  result.Number,
	}
	if result.Code != "" {
		payload["code"] = result.Code
		payload["expires_in_seconds"] = result.ExpiresIn
	}
	if result.UptimeSeconds > 0 {
		payload["uptime_seconds"] = result.UptimeSeconds
	}
	return c.JSON(payload)
}

// QR is the QR-image alternative to the pairing-code flow.
func (ctl *Controller) QR(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Query("number"))
	if err != nil {
		return badNumber(c, err)
	}

	var userID *int64
	if user := currentUser(c); user != nil {
		userID = &user.ID
	}

	qrImage, timeout, err := ctl.manager.PairQR(requestContext(c), number, userID)
	switch err {
	case nil:
	case session.ErrAlreadyConnected:
		return c.JSON(fiber.Map{
			"success": true,
			"status":  session.PairStatusAlreadyConnected,
			"number":  number,
		})
	case session.ErrPairingInProgress:
		return c.JSON(fiber.Map{
			"success": true,
			"status":  session.PairStatusPairingInProgress,
			"number":  number,
		})
	default:
		log.Print(c).WithError(err).Error("QR pairing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to generate QR code",
			"number":  number,
		})
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"status":          "qr",
		"qr":              qrImage,
		"timeout_seconds": timeout,
		"number":          number,
	})
}

func (ctl *Controller) Status(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return badNumber(c, err)
	}

	result, err := ctl.manager.Status(requestContext(c), number)
	if err != nil {
		log.Print(c).WithError(err).Warn("Status read degraded, registry state only")
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"number":         result.Number,
		"connected":      result.Connected,
		"state":          result.State,
		"uptime_seconds": result.UptimeSeconds,
		"has_session":    result.HasSession,
	})
}

func (ctl *Controller) Bots(c *fiber.Ctx) error {
	bots, err := ctl.manager.Snapshot(requestContext(c))
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list sessions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to list sessions",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(bots),
		"bots":    bots,
	})
}

// Send dispatches a text or image message through one live connection.
func (ctl *Controller) Send(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return badNumber(c, err)
	}

	var req types.RequestSend
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if !ctl.authorize(c, req.Token, number) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid token",
		})
	}

	if req.To == "" || (req.Message == "" && req.ImageBase64 == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "to and message or image_base64 are required",
		})
	}

	handle := ctl.manager.Registry().Get(number)
	if handle == nil || !handle.LoggedIn() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "number is not connected",
			"number":  number,
		})
	}

	ctx := requestContext(c)
	to := whatsapp.ComposeJID(req.To)

	var messageID string
	if req.ImageBase64 != "" {
		raw := req.ImageBase64
		if idx := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && idx >= 0 {
			raw = raw[idx+1:]
		}
		imageBytes, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "image_base64 is not valid base64",
			})
		}
		messageID, err = whatsapp.SendImage(ctx, handle.Client, to, imageBytes, http.DetectContentType(imageBytes), req.Caption)
		if err != nil {
			log.Print(c).WithError(err).Error("Image send failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to send image",
			})
		}
	} else {
		messageID, err = whatsapp.SendText(ctx, handle.Client, to, req.Message)
		if err != nil {
			log.Print(c).WithError(err).Error("Text send failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to send message",
			})
		}
	}

	if err := ctl.store.IncrementStat(ctx, number, store.StatMessagesSent); err != nil {
		log.Print(c).WithError(err).Debug("Stats increment failed")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message_id": messageID,
		"number":     number,
	})
}

// Disconnect tears the live connection down but keeps credentials; calling it
// for a number with no connection is a no-op success.
func (ctl *Controller) Disconnect(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return badNumber(c, err)
	}

	var req types.RequestDisconnect
	_ = c.BodyParser(&req)

	if !ctl.authorize(c, req.Token, number) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid token",
		})
	}

	if err := ctl.manager.Disconnect(requestContext(c), number); err != nil {
		log.Print(c).WithError(err).Warn("Disconnect finished with errors")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "disconnected",
		"number":  number,
	})
}

// DelSession fully purges one number: live teardown, credentials, counters
// and feature configuration.
func (ctl *Controller) DelSession(c *fiber.Ctx) error {
	number, err := phone.SanitizeAndValidate(c.Params("number"))
	if err != nil {
		return badNumber(c, err)
	}

	var req types.RequestDelSession
	_ = c.BodyParser(&req)

	if !ctl.authorize(c, req.Token, number) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid token",
		})
	}

	if err := ctl.manager.DeleteSession(requestContext(c), number); err != nil {
		log.Print(c).WithError(err).Error("Session purge failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to delete session",
			"number":  number,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "deleted",
		"number":  number,
	})
}

// DelSessions purges a batch of numbers, reporting per-number outcomes.
func (ctl *Controller) DelSessions(c *fiber.Ctx) error {
	var req types.RequestDelSessions
	if err := c.BodyParser(&req); err != nil || len(req.Numbers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "numbers list is required",
		})
	}

	ctx := requestContext(c)
	results := make([]fiber.Map, 0, len(req.Numbers))
	deleted := 0

	for _, raw := range req.Numbers {
		number, err := phone.SanitizeAndValidate(raw)
		if err != nil {
			results = append(results, fiber.Map{"number": raw, "deleted": false, "error": err.Error()})
			continue
		}
		if !ctl.authorize(c, req.Token, number) {
			results = append(results, fiber.Map{"number": number, "deleted": false, "error": "not authorized"})
			continue
		}
		if err := ctl.manager.DeleteSession(ctx, number); err != nil {
			log.Session(number, "DelSessions").WithError(err).Error("Session purge failed")
			results = append(results, fiber.Map{"number": number, "deleted": false, "error": "failed to delete session"})
			continue
		}
		deleted++
		results = append(results, fiber.Map{"number": number, "deleted": true})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"deleted": deleted,
		"results": results,
	})
}

func (ctl *Controller) Health(c *fiber.Ctx) error {
	if err := ctl.store.Ping(requestContext(c)); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"status":  "degraded",
			"error":   "database unreachable",
		})
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"status":      "ok",
		"connections": ctl.manager.Registry().Len(),
	})
}

func (ctl *Controller) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":        true,
		"name":           "go-whatsapp-automation-gateway",
		"connections":    ctl.manager.Registry().Len(),
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	})
}
