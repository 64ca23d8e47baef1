package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/guard"
	"github.com/nfrund/storefront/internal/middleware"
	"github.com/nfrund/storefront/internal/view"
	"github.com/nfrund/storefront/internal/view/pages"
	"github.com/nfrund/storefront/internal/visitor"
)

// AuthHandler handles sign-in, sign-up, sign-out and password recovery.
type AuthHandler struct {
	registry    *visitor.Registry
	translator  *auth.Translator
	baseURL     string
	waitTimeout time.Duration
}

// NewAuthHandler creates a new AuthHandler. Recovery links point at
// baseURL; waitTimeout bounds the wait for session readiness in handlers
// that change auth state outside a guard.
func NewAuthHandler(registry *visitor.Registry, translator *auth.Translator, baseURL string, waitTimeout time.Duration) *AuthHandler {
	return &AuthHandler{
		registry:    registry,
		translator:  translator,
		baseURL:     strings.TrimRight(baseURL, "/"),
		waitTimeout: waitTimeout,
	}
}

// LoginGet renders the login page (GET /login).
func (h *AuthHandler) LoginGet(c echo.Context) error {
	email := view.TakeFormEmail(c)
	return render(c, http.StatusOK, "Sign in", pages.Login(pages.LoginData{Email: email}))
}

// LoginPost checks the credentials and sends the visitor to the landing
// page of their role (POST /login). The returnUrl parameter is not used.
func (h *AuthHandler) LoginPost(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()
	log := middleware.FromContext(ctx)

	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	if email == "" || password == "" {
		view.SetFlashError(c, "Enter your e-mail and password.")
		view.SetFormEmail(c, email)
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}

	session, err := vc.Auth.SignIn(ctx, email, password)
	if err != nil {
		log.Warn("Failed login attempt", "error", err)
		view.SetFlashError(c, h.translator.Error(err))
		view.SetFormEmail(c, email)
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}

	profile := vc.Profiles.GetProfile(ctx, session.User.ID)
	dest := guard.SignInDestination(profile)
	log.Info("User signed in", "user_id", session.User.ID, "destination", dest)
	return c.Redirect(http.StatusSeeOther, dest)
}

// RegisterGet renders the registration page (GET /register).
func (h *AuthHandler) RegisterGet(c echo.Context) error {
	email := view.TakeFormEmail(c)
	return render(c, http.StatusOK, "Create account", pages.Register(pages.RegisterData{Email: email}))
}

// RegisterPost creates the account and its user profile (POST /register).
// The visitor is not signed in; they are sent to the login page.
func (h *AuthHandler) RegisterPost(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()
	log := middleware.FromContext(ctx)

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form").SetInternal(err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	fail := func(msg string) error {
		view.SetFlashError(c, msg)
		view.SetFormEmail(c, req.Email)
		return c.Redirect(http.StatusSeeOther, "/register")
	}

	if req.Password != req.PasswordConfirm {
		return fail(accountMessages["PasswordConfirm"])
	}
	if err := c.Validate(&req); err != nil {
		return fail(validationMessage(err, accountMessages))
	}

	user, err := vc.Auth.SignUp(ctx, req.Email, req.Password, map[string]any{"fullName": req.Name})
	if errors.Is(err, domain.ErrEmailTaken) {
		return fail(h.translator.Error(err))
	}
	if err != nil {
		log.Error("Error creating user", "error", err)
		return fail(h.translator.Error(err))
	}

	if _, err := vc.Profiles.CreateProfile(ctx, user.ID, req.Name); err != nil {
		// The account exists; without a profile it is treated as a user.
		log.Error("Account created without profile", "user_id", user.ID, "error", err)
	}

	view.SetFlashSuccess(c, "Account created. You can now sign in.")
	view.SetFormEmail(c, req.Email)
	return c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

// Logout signs the visitor out and drops its state (POST /logout).
func (h *AuthHandler) Logout(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()

	if err := vc.Session.Wait(ctx, h.waitTimeout); err != nil {
		middleware.FromContext(ctx).Warn("Signing out before session was ready", "error", err)
	}
	if err := vc.Auth.SignOut(ctx); err != nil {
		middleware.FromContext(ctx).Error("Sign-out failed", "error", err)
	}
	h.registry.Drop(vc.ID)

	view.SetFlashSuccess(c, "You have been signed out.")
	return c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

// ForgotPasswordGet renders the password reset request page (GET /forgot-password).
func (h *AuthHandler) ForgotPasswordGet(c echo.Context) error {
	email := view.TakeFormEmail(c)
	return render(c, http.StatusOK, "Reset password", pages.ForgotPassword(email))
}

// ForgotPasswordPost asks the provider to mail a recovery link
// (POST /forgot-password). The answer does not reveal whether the address
// has an account.
func (h *AuthHandler) ForgotPasswordPost(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()

	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		view.SetFlashError(c, accountMessages["Email"])
		return c.Redirect(http.StatusSeeOther, "/forgot-password")
	}

	if err := vc.Auth.ResetPassword(ctx, email, h.baseURL+"/reset-password"); err != nil {
		middleware.FromContext(ctx).Error("Failed to send password reset", "error", err)
	}

	view.SetFlashSuccess(c, "If an account with that e-mail exists, a reset link has been sent.")
	return c.Redirect(http.StatusSeeOther, "/forgot-password")
}

// ResetPassword exchanges the mailed token for a session and sends the
// visitor to the new password form (GET /reset-password?token=...).
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()

	token := c.QueryParam("token")
	if token == "" {
		view.SetFlashError(c, "A valid reset link is required to change your password.")
		return c.Redirect(http.StatusSeeOther, "/forgot-password")
	}

	if err := vc.Session.Wait(ctx, h.waitTimeout); err != nil {
		middleware.FromContext(ctx).Warn("Recovering before session was ready", "error", err)
	}
	if _, err := vc.Auth.Recover(ctx, token); err != nil {
		middleware.FromContext(ctx).Warn("Password recovery failed", "error", err)
		view.SetFlashError(c, h.translator.Error(err))
		return c.Redirect(http.StatusSeeOther, "/forgot-password")
	}

	view.SetFlashSuccess(c, "Choose a new password.")
	return c.Redirect(http.StatusSeeOther, "/account/password")
}

// PasswordGet renders the new password form (GET /account/password).
func (h *AuthHandler) PasswordGet(c echo.Context) error {
	return render(c, http.StatusOK, "Password", pages.UpdatePassword())
}

// PasswordPost changes the signed-in visitor's password (POST /account/password).
func (h *AuthHandler) PasswordPost(c echo.Context) error {
	vc, ok := middleware.VisitorFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
	ctx := c.Request().Context()

	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form").SetInternal(err)
	}
	if req.Password != req.PasswordConfirm {
		view.SetFlashError(c, accountMessages["PasswordConfirm"])
		return c.Redirect(http.StatusSeeOther, "/account/password")
	}
	if err := c.Validate(&req); err != nil {
		view.SetFlashError(c, validationMessage(err, accountMessages))
		return c.Redirect(http.StatusSeeOther, "/account/password")
	}

	if _, err := vc.Auth.UpdatePassword(ctx, req.Password); err != nil {
		middleware.FromContext(ctx).Warn("Password update failed", "error", err)
		view.SetFlashError(c, h.translator.Error(err))
		return c.Redirect(http.StatusSeeOther, "/account/password")
	}

	view.SetFlashSuccess(c, "Your password has been updated.")
	return c.Redirect(http.StatusSeeOther, guard.HomePath)
}
