package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/appctx"
)

// HeaderPrincipal names the caller when authentication is disabled.
const HeaderPrincipal = "X-Principal"

// Context copies request metadata onto the request context.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			ctx = appctx.SetMethod(ctx, req.Method)
			ctx = appctx.SetRoute(ctx, req.URL.Path)
			ctx = appctx.SetRemoteIP(ctx, c.RealIP())

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// TrustedPrincipal takes the caller identity from the X-Principal header and treats every
// caller as an admin. Only for deployments with AUTH_ENABLED=false.
func TrustedPrincipal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if principal := c.Request().Header.Get(HeaderPrincipal); principal != "" {
				ctx = appctx.SetPrincipal(ctx, principal)
			}
			ctx = appctx.SetAdmin(ctx, true)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
