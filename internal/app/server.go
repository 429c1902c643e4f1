package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/health"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/middleware"
	guestroutes "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/routes/guest"
)

// Server is the HTTP API.
type Server struct {
	app    *App
	echo   *echo.Echo
	health *health.Checker
}

// NewServer builds the echo instance. The app must be started.
func NewServer(ctx context.Context, a *App) (*Server, error) {
	cfg := a.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.Logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.Logger))
	e.Use(middleware.Metrics())

	checker := health.NewChecker(cfg.Version)
	if a.DB != nil {
		checker.AddDatabase(a.DB)
	}
	if a.Redis != nil {
		checker.AddRedis(a.Redis.Ping)
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		api.Use(middleware.Authentication(a.Logger, verifier, cfg.AuthAdminRole))
	} else {
		a.Logger.Warn("Authentication is disabled; every caller is treated as an admin")
		api.Use(middleware.TrustedPrincipal())
	}
	admin := api.Group("/admin", middleware.RequireAdmin())

	guestroutes.NewHandler(a.Guests, a.Logger).RegisterRoutes(api, admin)

	return &Server{app: a, echo: e, health: checker}, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.app.Config
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.echo,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.app.Logger.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.health.SetReady(true)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.health.SetReady(false)
	s.app.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
