package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get("Cache-Control") != "" {
			return err
		}
		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set("Cache-Control", ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics":
		return "no-cache"
	case path == "/graphql":
		return "private, max-age=0"
	case strings.HasSuffix(path, "/latest"):
		// the collector writes every few minutes
		return "public, max-age=60"
	case path == "/v1/locations/nearby":
		return "public, max-age=300"
	case strings.HasPrefix(path, "/v1/locations/"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=300"
	}
	return ""
}
