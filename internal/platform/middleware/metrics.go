package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pankbase/functional/internal/platform/metrics"
)

// Metrics records request counts and latency by route template. Unmatched
// routes are folded into one label so arbitrary paths cannot grow the series.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(c.Request().Method, route, statusOf(c, err), time.Since(start))
			return err
		}
	}
}
