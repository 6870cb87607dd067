package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers suitable for a JSON-only API that
// serves child health records.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "DENY")

			// Nothing here is meant to be rendered or embedded.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// One year, including subdomains.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Patient ids appear in URLs; keep them out of Referer.
			h.Set("Referrer-Policy", "no-referrer")

			// Growth charts and diagnoses must not land in shared caches.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
