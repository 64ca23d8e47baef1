package layouts

import (
	"bytes"
	"testing"

	"github.com/nfrund/storefront/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
)

func render(t *testing.T, n g.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, n.Render(&buf))
	return buf.String()
}

func TestCalculateTitle(t *testing.T) {
	assert.Equal(t, "Login - Storefront", CalculateTitle("Login"))
	assert.Equal(t, "Storefront", CalculateTitle(""))
}

func TestBase(t *testing.T) {
	t.Run("guest navigation", func(t *testing.T) {
		out := render(t, Base("Login", view.FlashData{}, Nav{}, g.Text("body")))
		assert.Contains(t, out, "<title>Login - Storefront</title>")
		assert.Contains(t, out, `href="/register"`)
		assert.NotContains(t, out, "/logout")
		assert.NotContains(t, out, "flashes")
	})

	t.Run("admin navigation with flashes", func(t *testing.T) {
		flashes := view.FlashData{Success: []string{"Saved"}, Error: []string{"Broken"}}
		out := render(t, Base("Seller", flashes, Nav{Authenticated: true, Admin: true, UserName: "Ana"}, g.Text("body")))
		assert.Contains(t, out, `href="/seller"`)
		assert.Contains(t, out, `action="/logout"`)
		assert.Contains(t, out, "Ana")
		assert.Contains(t, out, "Saved")
		assert.Contains(t, out, "Broken")
	})

	t.Run("user navigation hides seller link", func(t *testing.T) {
		out := render(t, Base("Home", view.FlashData{}, Nav{Authenticated: true, UserName: "Ana"}, g.Text("body")))
		assert.NotContains(t, out, `href="/seller"`)
	})
}
