package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/router"
)

// AdminCookieName holds the signed admin session token.
const AdminCookieName = "admin_token"

// AdminAuth gates /admin/* routes behind a valid admin JWT, taken from the
// session cookie or an Authorization bearer header.
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(AdminCookieName)
		if token == "" {
			header := c.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if token == "" {
			return router.ResponseUnauthorized(c, "Admin authentication required")
		}

		claims, err := ValidateAdminToken(token)
		if err != nil {
			log.Print(c).WithError(err).Warn("Rejected admin token")
			return router.ResponseUnauthorized(c, "Invalid admin session")
		}

		c.Locals("admin_subject", claims.Subject)
		return c.Next()
	}
}
