package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/geoattend-api/internal/observability"
	"github.com/noah-isme/geoattend-api/internal/utils"
)

// RateLimit throttles a route per authenticated user, falling back to the client IP.
// Rejections use the standard error envelope with error_kind "rate_limited".
func RateLimit(name string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
				return fmt.Sprintf("%s:user:%d", name, userID)
			}
			return fmt.Sprintf("%s:ip:%s", name, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.RateLimited().WithLabelValues(name).Inc()
			return utils.SendErrorKind(c, fiber.StatusTooManyRequests, "rate_limited", "too many attempts, please wait and try again")
		},
	})
}
