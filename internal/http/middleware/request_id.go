package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID in and out of the service.
	RequestIDHeader = "X-Request-ID"

	localsRequestID = "request_id"
)

// RequestID reuses the caller's request ID or generates one, and echoes it
// on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals(localsRequestID, rid)
		return c.Next()
	}
}

// requestIDFrom returns the request ID stored by RequestID, or "".
func requestIDFrom(c *fiber.Ctx) string {
	if rid, ok := c.Locals(localsRequestID).(string); ok {
		return rid
	}
	return ""
}
