// Package server assembles the echo application: public webhook and health
// routes, JWT-guarded admin routes, and optional local media serving.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dormline/dormline/internal/auth"
	"github.com/dormline/dormline/internal/channel/adapters/whatsapp"
	"github.com/dormline/dormline/internal/config"
	"github.com/dormline/dormline/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer wires the HTTP surface. The webhook and health endpoints stay
// open: the platform cannot authenticate with our JWTs, it proves itself via
// the verify-token handshake instead.
func NewServer(
	log *slog.Logger,
	cfg config.Config,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	listingsHandler *handlers.ListingsHandler,
	webhookHandler *whatsapp.WebhookHandler,
) *Server {
	addr := cfg.Server.Addr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(cfg.Auth.JWTSecret, func(c echo.Context) bool {
		path := c.Request().URL.Path
		if path == "/ping" || path == "/health" || path == "/auth/login" {
			return true
		}
		if strings.HasPrefix(path, "/webhook/") {
			return true
		}
		if strings.HasPrefix(path, "/media/") {
			return true
		}
		return false
	}))

	if cfg.Media.Provider == "local" {
		e.Static("/media", filepath.Join(cfg.Media.DataRoot, "media"))
	}

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if listingsHandler != nil {
		listingsHandler.Register(e)
	}
	if webhookHandler != nil {
		webhookHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	err := s.echo.Start(s.addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
