package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"localstack-relay/internal/model"
)

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from incoming requests and adds security headers to the relay's own admin
// responses under adminPrefix. Relayed responses are left as the emulator
// sent them.
func SecurityHeaders(adminPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			model.StripHopByHop(c.Request().Header)

			if p := c.Request().URL.Path; p == adminPrefix || strings.HasPrefix(p, adminPrefix+"/") {
				c.Response().Header().Set("X-Content-Type-Options", "nosniff")
				c.Response().Header().Set("X-Frame-Options", "DENY")
			}

			return next(c)
		}
	}
}

// RejectConnect answers CONNECT requests with 405. The gateway only relays
// plain HTTP; HTTPS clients must use the intercepting proxy. Register it with
// Echo.Pre so it runs before routing.
func RejectConnect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodConnect {
				c.Response().Header().Set(echo.HeaderAllow, "GET, HEAD, POST, PUT, DELETE, PATCH, OPTIONS")
				return c.JSON(http.StatusMethodNotAllowed, map[string]string{
					"error": "CONNECT is not supported by the gateway; use the intercepting proxy for HTTPS",
				})
			}
			return next(c)
		}
	}
}
