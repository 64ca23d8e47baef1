package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/guard"
	"github.com/nfrund/storefront/internal/middleware"
)

// healthPath serves the liveness report. It never creates a visitor.
const healthPath = "/health"

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	opts := guard.Options{WaitTimeout: s.Cfg.GetGuardWaitTimeout()}
	guestOnly := middleware.Guard(opts.GuestOnly)
	requireAuth := middleware.Guard(opts.RequireAuth)
	requireAdmin := middleware.Guard(opts.RequireAdmin)
	rateLimiter := middleware.RateLimiter(s.Cfg.GetLoginRateLimit())

	toLogin := func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}

	s.E.GET("/", toLogin)

	s.E.GET("/login", s.authHandler.LoginGet, guestOnly)
	s.E.POST("/login", s.authHandler.LoginPost, guestOnly, rateLimiter)

	s.E.GET("/register", s.authHandler.RegisterGet, guestOnly)
	s.E.POST("/register", s.authHandler.RegisterPost, guestOnly, rateLimiter)

	s.E.GET("/forgot-password", s.authHandler.ForgotPasswordGet, guestOnly)
	s.E.POST("/forgot-password", s.authHandler.ForgotPasswordPost, guestOnly, rateLimiter)

	// The recovery link signs the visitor in, so it cannot be guest only.
	s.E.GET("/reset-password", s.authHandler.ResetPassword, rateLimiter)

	s.E.POST("/logout", s.authHandler.Logout)

	s.E.GET(guard.HomePath, s.catalogHandler.HomeGet, requireAuth)
	s.E.GET("/product/:id", s.catalogHandler.ProductGet, requireAuth)
	s.E.GET("/account/password", s.authHandler.PasswordGet, requireAuth)
	s.E.POST("/account/password", s.authHandler.PasswordPost, requireAuth)

	s.E.GET(guard.SellerPath, s.catalogHandler.SellerGet, requireAdmin)
	s.E.POST(guard.SellerPath, s.catalogHandler.SellerPost, requireAdmin)

	s.E.GET(healthPath, s.health)

	s.E.RouteNotFound("/*", toLogin)
}
