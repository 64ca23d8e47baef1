// Package server assembles the echo instance, its middleware and routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/catalog"
	"github.com/nfrund/storefront/internal/config"
	"github.com/nfrund/storefront/internal/handlers"
	"github.com/nfrund/storefront/internal/middleware"
	"github.com/nfrund/storefront/internal/view"
	"github.com/nfrund/storefront/internal/visitor"
)

// HealthCheck reports whether one backend dependency is usable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the HTTP layer needs.
type Dependencies struct {
	Config     config.Provider
	Registry   *visitor.Registry
	Translator *auth.Translator
	Catalog    *catalog.Service
	// Checks are run by /health, keyed by dependency name.
	Checks map[string]HealthCheck
}

// Server holds the echo instance and the handlers behind it.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	deps           Dependencies
	authHandler    *handlers.AuthHandler
	catalogHandler *handlers.CatalogHandler
}

// New creates a Server with the middleware chain installed. Routes are
// added by RegisterRoutes.
func New(deps Dependencies) *Server {
	cfg := deps.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = view.NewRenderer()
	e.Validator = handlers.NewValidator()
	setupErrorHandling(e)

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())

	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))
	e.Use(middleware.Visitor(deps.Registry, healthPath))

	return &Server{
		E:              e,
		Cfg:            cfg,
		deps:           deps,
		authHandler:    handlers.NewAuthHandler(deps.Registry, deps.Translator, cfg.GetAppBaseURL(), cfg.GetGuardWaitTimeout()),
		catalogHandler: handlers.NewCatalogHandler(deps.Catalog, cfg.GetMaxImageBytes()),
	}
}

// setupErrorHandling logs unhandled errors with a stack trace before
// handing them to echo's default handler.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ctx := c.Request().Context()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code >= http.StatusInternalServerError {
				middleware.FromContext(ctx).Error("Internal Server Error",
					"error", err, "internal", he.Internal)
			}
		} else {
			middleware.FromContext(ctx).Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"stack_trace", string(debug.Stack()),
			)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Visitors int               `json:"visitors"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Visitors: s.deps.Registry.Len()}
	status := http.StatusOK
	if len(s.deps.Checks) > 0 {
		resp.Checks = make(map[string]string, len(s.deps.Checks))
	}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "Health check failed", "dependency", name, "error", err)
			resp.Checks[name] = fmt.Sprintf("error: %v", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(status, resp)
}
