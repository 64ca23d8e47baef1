// Package guard decides whether a visitor may enter a route.
package guard

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
)

// Route targets used by the guards.
const (
	LoginPath   = "/login"
	HomePath    = "/home"
	SellerPath  = "/seller"
	ReturnParam = "returnUrl"
)

// SessionState is the part of the session store the guards read.
type SessionState interface {
	Wait(ctx context.Context, timeout time.Duration) error
	Authenticated() bool
	CurrentUser() *auth.User
}

// ProfileSource is the part of the profile lookup the admin guard reads.
type ProfileSource interface {
	Current() *domain.Profile
	GetProfile(ctx context.Context, userID string) *domain.Profile
}

// Decision is the outcome of a guard. When Allow is false Redirect holds
// the path to send the visitor to.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{Allow: true} }

// RedirectTo cancels the navigation in favor of path.
func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Options tune guard evaluation.
type Options struct {
	// WaitTimeout bounds the wait for session readiness. Zero waits until
	// the request context ends.
	WaitTimeout time.Duration
}

// Guard evaluates one access rule for a requested path.
type Guard func(ctx context.Context, s SessionState, p ProfileSource, requested string) Decision

// RequireAuth admits authenticated visitors and sends everybody else to
// the login page with the requested path as return URL.
func (o Options) RequireAuth(ctx context.Context, s SessionState, _ ProfileSource, requested string) Decision {
	if !o.ready(ctx, s) || !s.Authenticated() {
		return RedirectTo(loginWithReturn(requested))
	}
	return Allow()
}

// GuestOnly admits visitors that are not signed in and sends signed-in
// visitors to the default landing page. A store that never became ready
// counts as signed out.
func (o Options) GuestOnly(ctx context.Context, s SessionState, _ ProfileSource, _ string) Decision {
	if o.ready(ctx, s) && s.Authenticated() {
		return RedirectTo(HomePath)
	}
	return Allow()
}

// RequireAdmin admits visitors whose profile has the admin role. The
// cached profile is used when it belongs to the current user; otherwise it
// is fetched. Missing or failed profiles are treated as non-admin.
func (o Options) RequireAdmin(ctx context.Context, s SessionState, p ProfileSource, _ string) Decision {
	if !o.ready(ctx, s) || !s.Authenticated() {
		return RedirectTo(LoginPath)
	}
	user := s.CurrentUser()
	if user == nil {
		return RedirectTo(LoginPath)
	}

	profile := p.Current()
	if profile == nil || profile.ID != user.ID {
		profile = p.GetProfile(ctx, user.ID)
	}
	if profile == nil || !profile.Role.IsAdmin() {
		return RedirectTo(HomePath)
	}
	return Allow()
}

func (o Options) ready(ctx context.Context, s SessionState) bool {
	if err := s.Wait(ctx, o.WaitTimeout); err != nil {
		slog.WarnContext(ctx, "Session store not ready for navigation", "error", err)
		return false
	}
	return true
}

func loginWithReturn(requested string) string {
	if requested == "" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{ReturnParam: {requested}}.Encode()
}

// SignInDestination is the landing page after a successful sign-in.
func SignInDestination(p *domain.Profile) string {
	if p == nil {
		return HomePath
	}
	switch p.Role {
	case domain.RoleAdmin:
		return SellerPath
	case domain.RoleUser:
		return HomePath
	default:
		return HomePath
	}
}
