package middleware

import (
	"net/http"
	"slices"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/storefront/internal/visitor"
)

const (
	// VisitorSessionName is the cookie session that carries the visitor id.
	VisitorSessionName = "visitor-session"
	visitorIDKey       = "visitor_id"
	visitorContextKey  = "visitor"
)

// Visitor resolves the visitor behind the request cookie, creating one on
// first contact, and stores it on the echo context. Requests for skipPaths
// get no visitor and no cookie. It must run after the session middleware.
func Visitor(registry *visitor.Registry, skipPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if slices.Contains(skipPaths, c.Request().URL.Path) {
				return next(c)
			}

			sess, err := session.Get(VisitorSessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session store unavailable").SetInternal(err)
			}

			id, _ := sess.Values[visitorIDKey].(string)
			if id == "" {
				id = visitor.NewID()
				sess.Values[visitorIDKey] = id
				sess.Options = &sessions.Options{
					Path:     "/",
					MaxAge:   86400 * 30,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				}
				if err := sess.Save(c.Request(), c.Response()); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "could not save visitor session").SetInternal(err)
				}
			}

			ctx := c.Request().Context()
			vc := registry.Resolve(ctx, id)
			logger := FromContext(ctx).With("visitor_id", id)
			c.SetRequest(c.Request().WithContext(WithLogger(ctx, logger)))
			c.Set(visitorContextKey, vc)
			return next(c)
		}
	}
}

// VisitorFrom returns the visitor stored by the Visitor middleware.
func VisitorFrom(c echo.Context) (*visitor.Context, bool) {
	vc, ok := c.Get(visitorContextKey).(*visitor.Context)
	return vc, ok && vc != nil
}
