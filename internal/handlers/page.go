package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/middleware"
	"github.com/nfrund/storefront/internal/view"
	"github.com/nfrund/storefront/internal/view/layouts"
	g "maragu.dev/gomponents"
)

// defaultUserName is shown when a user has neither a name nor an e-mail.
const defaultUserName = "User"

// userName picks the greeting name: the fullName metadata, then the e-mail.
func userName(u *auth.User) string {
	if u == nil {
		return defaultUserName
	}
	if name := u.MetadataString("fullName"); name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return defaultUserName
}

func navFor(c echo.Context) layouts.Nav {
	vc, ok := middleware.VisitorFrom(c)
	if !ok || vc.Session.Loading() || !vc.Session.Authenticated() {
		return layouts.Nav{}
	}
	return layouts.Nav{
		Authenticated: true,
		Admin:         vc.Profiles.IsAdmin(),
		UserName:      userName(vc.Session.CurrentUser()),
	}
}

// render writes content inside the base layout with the pending flashes.
func render(c echo.Context, status int, title string, content g.Node) error {
	return renderWith(c, status, title, view.GetFlashData(c), content)
}

func renderWith(c echo.Context, status int, title string, flashes view.FlashData, content g.Node) error {
	return c.Render(status, "", layouts.Base(title, flashes, navFor(c), content))
}
