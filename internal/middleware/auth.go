package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/guard"
)

// Guard evaluates g before the handler and answers a refusal with a 303
// redirect. Requests without a visitor are sent to the login page.
func Guard(g guard.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			vc, ok := VisitorFrom(c)
			if !ok {
				return c.Redirect(http.StatusSeeOther, guard.LoginPath)
			}

			ctx := c.Request().Context()
			d := g(ctx, vc.Session, vc.Profiles, c.Request().URL.RequestURI())
			if !d.Allow {
				FromContext(ctx).Debug("Navigation refused", "redirect", d.Redirect)
				return c.Redirect(http.StatusSeeOther, d.Redirect)
			}
			return next(c)
		}
	}
}
