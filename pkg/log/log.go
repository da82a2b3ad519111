package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

// Print returns a request-scoped entry carrying remote_ip, method and uri.
func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// Session returns an entry scoped to one phone number and lifecycle operation.
func Session(number string, operation string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"number":    number,
		"operation": operation,
	})
}

// Dispatch returns an entry for inbound event handling on a live connection.
func Dispatch(number string, kind string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"number": number,
		"event":  kind,
	})
}
