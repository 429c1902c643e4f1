package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/appctx"
)

// Logger writes one access line per request once the error handler has set the final status.
// Probe routes are only logged when they fail.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			began := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			ctx := c.Request().Context()
			status := c.Response().Status
			route := c.Path()
			if isProbe(route) && status < http.StatusBadRequest {
				return nil
			}

			entry := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id": appctx.GetRequestID(ctx),
				"principal":  appctx.GetPrincipal(ctx),
				"method":     c.Request().Method,
				"route":      route,
				"status":     status,
				"latency_ms": time.Since(began).Milliseconds(),
				"bytes_out":  c.Response().Size,
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}

func isProbe(route string) bool {
	return route == "/metrics" || strings.HasPrefix(route, "/api/v1/health")
}
