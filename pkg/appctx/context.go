// Package appctx holds request-scoped values carried on a context.Context.
package appctx

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	PrincipalKey = ContextKey("X-Principal")
	AdminKey     = ContextKey("X-Admin")
)

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getString(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getString(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getString(ctx, RemoteIPKey)
}

// SetPrincipal stores the authenticated subject making the request.
func SetPrincipal(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, PrincipalKey, subject)
}

// GetPrincipal returns the authenticated subject, or "system" when the call did not come
// through an authenticated request (CLI repair runs, tests).
func GetPrincipal(ctx context.Context) string {
	if p := getString(ctx, PrincipalKey); p != "" {
		return p
	}
	return "system"
}

func SetAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, AdminKey, admin)
}

func IsAdmin(ctx context.Context) bool {
	value, ok := ctx.Value(AdminKey).(bool)
	return ok && value
}
