package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"localstack-relay/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records request counts,
// latency and in-flight gauges for the gateway. Relayed AWS calls all share
// the "relayed" path label so bucket keys never become label values; admin
// routes share the admin prefix label.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			req := c.Request()
			labels := []string{
				metrics.NormalizeMethod(req.Method),
				strconv.Itoa(responseStatus(c, err)),
				metrics.NormalizePath(req.URL.Path),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(elapsed)

			return err
		}
	}
}

// responseStatus is the status the client will see. Echo's error handler
// writes error responses after the middleware chain returns, so an
// uncommitted response takes its code from err: an *echo.HTTPError's own
// code (the relay handler's 502/504 mapping, router 404s), otherwise 500.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
