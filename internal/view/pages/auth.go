// Package pages holds the content of each screen, rendered inside layouts.Base.
package pages

import (
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// LoginData pre-fills the login form.
type LoginData struct {
	Email string
}

// Login renders the sign-in form.
func Login(data LoginData) g.Node {
	return h.Section(h.Class("card auth"),
		h.H1(g.Text("Sign in")),
		h.Form(h.Method("post"), h.Action("/login"),
			field("email", "E-mail", h.Input(h.Type("email"), h.ID("email"), h.Name("email"), h.Value(data.Email), h.Required())),
			field("password", "Password", h.Input(h.Type("password"), h.ID("password"), h.Name("password"), h.Required())),
			h.Button(h.Type("submit"), g.Text("Sign in")),
		),
		h.P(
			h.A(h.Href("/forgot-password"), g.Text("Forgot your password?")),
			g.Text(" · "),
			h.A(h.Href("/register"), g.Text("Create an account")),
		),
	)
}

// RegisterData pre-fills the registration form.
type RegisterData struct {
	Email string
	Name  string
}

// Register renders the sign-up form.
func Register(data RegisterData) g.Node {
	return h.Section(h.Class("card auth"),
		h.H1(g.Text("Create account")),
		h.Form(h.Method("post"), h.Action("/register"),
			field("name", "Full name", h.Input(h.Type("text"), h.ID("name"), h.Name("name"), h.Value(data.Name), h.Required(), g.Attr("minlength", "3"))),
			field("email", "E-mail", h.Input(h.Type("email"), h.ID("email"), h.Name("email"), h.Value(data.Email), h.Required())),
			field("password", "Password", h.Input(h.Type("password"), h.ID("password"), h.Name("password"), h.Required(), g.Attr("minlength", "6"))),
			field("password_confirm", "Confirm password", h.Input(h.Type("password"), h.ID("password_confirm"), h.Name("password_confirm"), h.Required())),
			h.Button(h.Type("submit"), g.Text("Create account")),
		),
		h.P(h.A(h.Href("/login"), g.Text("Already registered? Sign in"))),
	)
}

// ForgotPassword renders the password reset request form.
func ForgotPassword(email string) g.Node {
	return h.Section(h.Class("card auth"),
		h.H1(g.Text("Reset password")),
		h.P(g.Text("We will e-mail you a link to choose a new password.")),
		h.Form(h.Method("post"), h.Action("/forgot-password"),
			field("email", "E-mail", h.Input(h.Type("email"), h.ID("email"), h.Name("email"), h.Value(email), h.Required())),
			h.Button(h.Type("submit"), g.Text("Send link")),
		),
		h.P(h.A(h.Href("/login"), g.Text("Back to sign in"))),
	)
}

// UpdatePassword renders the new password form of a signed-in visitor.
func UpdatePassword() g.Node {
	return h.Section(h.Class("card auth"),
		h.H1(g.Text("Choose a new password")),
		h.Form(h.Method("post"), h.Action("/account/password"),
			field("password", "New password", h.Input(h.Type("password"), h.ID("password"), h.Name("password"), h.Required(), g.Attr("minlength", "6"))),
			field("password_confirm", "Confirm password", h.Input(h.Type("password"), h.ID("password_confirm"), h.Name("password_confirm"), h.Required())),
			h.Button(h.Type("submit"), g.Text("Save password")),
		),
	)
}

func field(id, label string, input g.Node) g.Node {
	return h.Div(h.Class("field"),
		h.Label(h.For(id), g.Text(label)),
		input,
	)
}
