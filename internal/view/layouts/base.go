// Package layouts holds the page shell shared by every screen.
package layouts

import (
	"github.com/nfrund/storefront/internal/view"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	h "maragu.dev/gomponents/html"
)

// Nav describes the navigation bar for the current visitor.
type Nav struct {
	Authenticated bool
	Admin         bool
	UserName      string
}

// CalculateTitle handles the conditional logic for the page title.
func CalculateTitle(title string) string {
	if title != "" {
		return title + " - Storefront"
	}
	return "Storefront"
}

// Base wraps content in the document shell with navigation and flashes.
func Base(title string, flashes view.FlashData, nav Nav, content g.Node) g.Node {
	return h.Doctype(
		h.HTML(
			h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("utf-8")),
				h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1")),
				h.TitleEl(g.Text(CalculateTitle(title))),
				h.Script(h.Src("https://unpkg.com/htmx.org@2.0.4")),
			),
			h.Body(
				hx.Boost("true"),
				navBar(nav),
				flashList(flashes),
				h.Main(h.Class("container"), content),
			),
		),
	)
}

func navBar(nav Nav) g.Node {
	if !nav.Authenticated {
		return h.Nav(h.Class("nav"),
			h.A(h.Href("/login"), g.Text("Sign in")),
			h.A(h.Href("/register"), g.Text("Create account")),
		)
	}
	return h.Nav(h.Class("nav"),
		h.A(h.Href("/home"), g.Text("Catalog")),
		g.If(nav.Admin, h.A(h.Href("/seller"), g.Text("Sell"))),
		h.A(h.Href("/account/password"), g.Text("Password")),
		h.Span(h.Class("nav-user"), g.Text(nav.UserName)),
		h.Form(h.Method("post"), h.Action("/logout"),
			h.Button(h.Type("submit"), g.Text("Sign out")),
		),
	)
}

func flashList(flashes view.FlashData) g.Node {
	if flashes.Empty() {
		return nil
	}
	return h.Div(h.Class("flashes"),
		g.Map(flashes.Success, func(m string) g.Node {
			return h.P(h.Class("flash flash-success"), h.Role("status"), g.Text(m))
		}),
		g.Map(flashes.Error, func(m string) g.Node {
			return h.P(h.Class("flash flash-error"), h.Role("alert"), g.Text(m))
		}),
	)
}
